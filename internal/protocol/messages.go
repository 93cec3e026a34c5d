// Package protocol defines the JSON envelope and the request/event
// vocabulary spoken over each client connection. Every frame is one
// Envelope; the Data field carries the type-specific payload.
package protocol

import "github.com/cardroom/cardroom/poker"

// Client -> server request types.
const (
	TypePing         = "ping"
	TypeAuth         = "auth"
	TypeCreateRoom   = "create_room"
	TypeJoinRoom     = "join_room"
	TypeLeaveRoom    = "leave_room"
	TypeQuickMatch   = "quick_match"
	TypeCancelMatch  = "cancel_match"
	TypePlayerAction = "player_action"
	TypeChat         = "chat"
	TypeSitOut       = "sit_out"
	TypeSitIn        = "sit_in"
	TypeBuyIn        = "buy_in"
)

// Server -> client event types.
const (
	TypePong        = "pong"
	TypeConnected   = "connected"
	TypeAuthSuccess = "auth_success"
	TypeAuthFailed  = "auth_failed"
	TypeRoomJoined  = "room_joined"
	TypeRoomLeft    = "room_left"
	TypePlayerJoin  = "player_joined"
	TypePlayerLeave = "player_left"
	TypeGameState   = "game_state"
	TypeYourTurn    = "your_turn"
	TypeDealCards   = "deal_cards"
	TypeHandResult  = "hand_result"
	TypeError       = "error"
)

// Requests.

// AuthRequest presents a bearer token minted by the HTTP auth surface.
type AuthRequest struct {
	Token string `json:"token"`
}

// RoomConfig is the client-supplied table configuration.
type RoomConfig struct {
	Name       string `json:"name,omitempty"`
	SmallBlind int    `json:"smallBlind"`
	BigBlind   int    `json:"bigBlind"`
	Ante       int    `json:"ante,omitempty"`
	MaxSeats   int    `json:"maxSeats,omitempty"`
	MinBuyIn   int    `json:"minBuyIn,omitempty"`
	MaxBuyIn   int    `json:"maxBuyIn,omitempty"`
	IsPrivate  bool   `json:"isPrivate,omitempty"`
	Password   string `json:"password,omitempty"`
}

// CreateRoomRequest asks for a fresh table.
type CreateRoomRequest struct {
	Config RoomConfig `json:"config"`
	BuyIn  int        `json:"buyIn"`
}

// JoinRoomRequest joins a named table.
type JoinRoomRequest struct {
	RoomID   string `json:"roomId"`
	Password string `json:"password,omitempty"`
	BuyIn    int    `json:"buyIn"`
}

// QuickMatchRequest enters a stake-tier matchmaking bucket.
type QuickMatchRequest struct {
	BlindLevel int `json:"blindLevel"` // big blind of the desired tier
	BuyIn      int `json:"buyIn,omitempty"`
}

// PlayerActionRequest submits a betting decision. Amount is the
// raise-to street total and is ignored for other actions.
type PlayerActionRequest struct {
	Action string `json:"action"` // fold|check|call|raise|all_in
	Amount int    `json:"amount,omitempty"`
}

// ChatRequest relays a table chat line.
type ChatRequest struct {
	Message string `json:"message"`
}

// BuyInRequest adds chips between hands, bounded by table config.
type BuyInRequest struct {
	Amount int `json:"amount"`
}

// Events.

// ConnectedPayload greets a new connection before auth.
type ConnectedPayload struct {
	ClientID string `json:"clientId"`
	PlayerID string `json:"playerId,omitempty"`
}

// AuthSuccessPayload confirms token verification.
type AuthSuccessPayload struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Resumed  bool   `json:"resumed,omitempty"` // a live seat was re-attached
}

// AuthFailedPayload reports why verification failed.
type AuthFailedPayload struct {
	Error string `json:"error"`
}

// RoomInfo summarizes a table for lobby listings and join responses.
type RoomInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	SmallBlind int    `json:"smallBlind"`
	BigBlind   int    `json:"bigBlind"`
	Ante       int    `json:"ante,omitempty"`
	MaxSeats   int    `json:"maxSeats"`
	Seated     int    `json:"seated"`
	MinBuyIn   int    `json:"minBuyIn"`
	MaxBuyIn   int    `json:"maxBuyIn"`
	IsPrivate  bool   `json:"isPrivate,omitempty"`
}

// RoomJoinedPayload confirms a join with the seat taken.
type RoomJoinedPayload struct {
	Room      RoomInfo `json:"room"`
	SeatIndex int      `json:"seatIndex"`
}

// PlayerJoinedPayload announces a new occupant to the room.
type PlayerJoinedPayload struct {
	PlayerID  string `json:"playerId"`
	Name      string `json:"name"`
	SeatIndex int    `json:"seatIndex"`
	Chips     int    `json:"chips"`
	IsBot     bool   `json:"isBot,omitempty"`
}

// PlayerLeftPayload announces a departure.
type PlayerLeftPayload struct {
	PlayerID string `json:"playerId"`
}

// SeatState is one seat inside a game_state snapshot. HoleCards is
// populated only in a player's private snapshot or at showdown.
type SeatState struct {
	PlayerID     string       `json:"playerId"`
	Name         string       `json:"name"`
	SeatIndex    int          `json:"seatIndex"`
	Chips        int          `json:"chips"`
	CurrentWager int          `json:"currentWager"`
	TotalWager   int          `json:"totalWager"`
	State        string       `json:"state"`
	LastAction   string       `json:"lastAction,omitempty"`
	IsDealer     bool         `json:"isDealer,omitempty"`
	IsSmallBlind bool         `json:"isSmallBlind,omitempty"`
	IsBigBlind   bool         `json:"isBigBlind,omitempty"`
	IsBot        bool         `json:"isBot,omitempty"`
	HoleCards    []poker.Card `json:"holeCards,omitempty"`
}

// GameStatePayload is the full table snapshot delivered on join,
// reconnect, and whenever a client needs to resync.
type GameStatePayload struct {
	RoomID     string       `json:"roomId"`
	HandID     string       `json:"handId,omitempty"`
	HandNumber uint64       `json:"handNumber"`
	Phase      string       `json:"phase"`
	Community  []poker.Card `json:"community,omitempty"`
	Pot        int          `json:"pot"`
	CurrentBet int          `json:"currentBet"`
	MinRaise   int          `json:"minRaise"`
	DealerSeat int          `json:"dealerSeat"`
	ActorSeat  int          `json:"actorSeat"`
	Deadline   int64        `json:"deadline,omitempty"` // ms since epoch
	Seats      []SeatState  `json:"seats"`
}

// YourTurnPayload tells a client it must act before the deadline.
type YourTurnPayload struct {
	CallAmount int   `json:"callAmount"`
	MinRaise   int   `json:"minRaise"` // smallest raise-to total
	MaxRaise   int   `json:"maxRaise"` // all-in raise-to total
	CanCheck   bool  `json:"canCheck"`
	CanRaise   bool  `json:"canRaise"`
	Deadline   int64 `json:"deadline"` // ms since epoch
}

// PlayerActionPayload broadcasts an accepted action.
type PlayerActionPayload struct {
	PlayerID string `json:"playerId"`
	Action   string `json:"action"`
	Amount   int    `json:"amount,omitempty"`
	Chips    int    `json:"chips"`
	Pot      int    `json:"pot"`
}

// DealCardsPayload carries newly dealt cards. For community deals the
// payload is broadcast; hole cards go only to their owner and, at
// showdown, to the room.
type DealCardsPayload struct {
	Phase    string       `json:"phase"`
	Cards    []poker.Card `json:"cards"`
	PlayerID string       `json:"playerId,omitempty"` // set for hole cards
}

// HandWinner is one line of a hand_result.
type HandWinner struct {
	PlayerID string       `json:"playerId"`
	Amount   int          `json:"amount"`
	HandType string       `json:"handType,omitempty"`
	BestFive []poker.Card `json:"bestFive,omitempty"`
}

// HandResultPayload ends a hand.
type HandResultPayload struct {
	HandID    string       `json:"handId"`
	Winners   []HandWinner `json:"winners"`
	Community []poker.Card `json:"community,omitempty"`
	FinalPot  int          `json:"finalPot"`
}

// ChatPayload relays one chat line to a room.
type ChatPayload struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Message    string `json:"message"`
}

// ErrorPayload is sent for protocol, authorization, and domain
// rejections. Code is a stable machine-readable kind.
type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
