package models

// NumQuestions is the fixed number of questions per round.
const NumQuestions = 10

// Machine-readable error codes, grouped by the failure taxonomy:
// validation, state conflict, access control, dependency failure.
const (
	// Validation
	CodeInvalidCommitment    = "invalid_commitment"
	CodeInvalidTimingWindow  = "invalid_timing_window"
	CodeInvalidDisplayName   = "invalid_display_name"
	CodeUnknownRound         = "unknown_round"
	CodeZeroAmount           = "zero_amount"
	CodeZeroAddress          = "zero_address"
	CodeInvalidRequest       = "invalid_request"

	// State conflict
	CodeNoActiveRound        = "no_active_round"
	CodeRoundAlreadyResolved = "round_already_resolved"
	CodeActiveCommitExists   = "active_commit_exists"
	CodeNoCommitment         = "no_commitment"
	CodeAlreadyRevealed      = "already_revealed"
	CodeCommitmentExpired    = "commitment_expired"
	CodeCommitNotExpired     = "commitment_not_expired"
	CodeTooEarlyToReveal     = "too_early_to_reveal"
	CodeCommitmentMismatch   = "commitment_mismatch"
	CodePrizeNotFunded       = "prize_not_funded"

	// Access control
	CodeNotAdmin     = "not_admin"
	CodeBanned       = "banned"
	CodeInvalidToken = "invalid_token"

	// Dependency failure
	CodeEscrowTransferFailed = "escrow_transfer_failed"

	CodeNotFound = "not_found"
	CodeInternal = "internal_error"
)

// Request types

type StartRoundRequest struct {
	EntryFee     int64    `json:"entry_fee"`
	PrizeAmount  int64    `json:"prize_amount"`
	AnswerSalt   string   `json:"answer_salt"`   // hex, nonzero
	AnswerHashes []string `json:"answer_hashes"` // exactly 10 hex SHA-256 digests
	// Optional reveal window in seconds; config defaults apply when zero.
	MinRevealDelay int64 `json:"min_reveal_delay,omitempty"`
	MaxRevealDelay int64 `json:"max_reveal_delay,omitempty"`
}

type UpdateAnswersRequest struct {
	AnswerHashes []string `json:"answer_hashes"`
}

type UpdateEconomicsRequest struct {
	EntryFee       int64 `json:"entry_fee"`
	PrizeAmount    int64 `json:"prize_amount"`
	MinRevealDelay int64 `json:"min_reveal_delay"`
	MaxRevealDelay int64 `json:"max_reveal_delay"`
}

type FundPrizeRequest struct {
	Amount int64 `json:"amount"`
}

type WithdrawRequest struct {
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

type CancelRoundRequest struct {
	// Maximum number of players to resolve in this call; defaults to 500.
	Limit int64 `json:"limit,omitempty"`
}

type BanRequest struct {
	Banned bool `json:"banned"`
}

type DepositRequest struct {
	Amount int64 `json:"amount"`
}

type CommitRequest struct {
	CommitHash  string `json:"commit_hash"` // hex SHA-256 commitment
	DisplayName string `json:"display_name"`
}

type RevealRequest struct {
	Answers    []string `json:"answers"` // exactly 10 plaintext answers
	RevealSalt string   `json:"reveal_salt"` // hex, as used in the commitment
	// Optional; the stored commit-time name is used when empty.
	DisplayName string `json:"display_name,omitempty"`
}

// Response types

type RegisterPlayerResponse struct {
	PlayerID    string `json:"player_id"`
	PlayerToken string `json:"player_token"`
}

type StartRoundResponse struct {
	RoundID        int64 `json:"round_id"`
	MinRevealDelay int64 `json:"min_reveal_delay"`
	MaxRevealDelay int64 `json:"max_reveal_delay"`
}

type FundPrizeResponse struct {
	RoundID     int64 `json:"round_id"`
	PrizeFunded int64 `json:"prize_funded"`
}

type CancelRoundResponse struct {
	RoundID   int64 `json:"round_id"`
	Resolved  int64 `json:"resolved"`  // loss tokens issued by this call
	Remaining int64 `json:"remaining"` // unresolved committers left to process
}

type CommitResponse struct {
	RoundID     int64  `json:"round_id"`
	PlayerID    string `json:"player_id"`
	CommitHash  string `json:"commit_hash"`
	DisplayName string `json:"display_name"`
	CommittedAt int64  `json:"committed_at"` // unix seconds
}

type RevealResponse struct {
	RoundID     int64  `json:"round_id"`
	PlayerID    string `json:"player_id"`
	Correct     bool   `json:"correct"`
	TokenID     int64  `json:"token_id"`
	DisplayName string `json:"display_name"`
	PrizePaid   int64  `json:"prize_paid,omitempty"`
}

type BalanceResponse struct {
	AccountID string `json:"account_id"`
	Balance   int64  `json:"balance"`
}

type PlayersPageResponse struct {
	RoundID int64    `json:"round_id"`
	Offset  int64    `json:"offset"`
	Limit   int64    `json:"limit"`
	Total   int64    `json:"total"`
	Players []string `json:"players"`
}

// Domain types

type RoundStatus struct {
	RoundID        int64  `json:"round_id"`
	EntryFee       int64  `json:"entry_fee"`
	PrizeAmount    int64  `json:"prize_amount"`
	PrizeFunded    int64  `json:"prize_funded"`
	Active         bool   `json:"active"`    // current and not yet resolved
	Funded         bool   `json:"funded"`    // prize_funded >= prize_amount
	Completed      bool   `json:"completed"` // won (by win or cancellation)
	Cancelled      bool   `json:"cancelled"`
	Winner         string `json:"winner,omitempty"`
	WinnerName     string `json:"winner_name,omitempty"`
	MinRevealDelay int64  `json:"min_reveal_delay"`
	MaxRevealDelay int64  `json:"max_reveal_delay"`
}

type CommitStatus struct {
	RoundID     int64  `json:"round_id"`
	PlayerID    string `json:"player_id"`
	Present     bool   `json:"present"`
	Revealed    bool   `json:"revealed"`
	Expired     bool   `json:"expired"`
	CommittedAt int64  `json:"committed_at,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	CommitHash  string `json:"commit_hash,omitempty"`
}

// TokenMetadata is the descriptor returned for an issued outcome token.
type TokenMetadata struct {
	TokenID     int64  `json:"token_id"`
	Status      string `json:"status"` // "resolved" or "pending"
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Round       int64  `json:"round,omitempty"`
	Winner      string `json:"winner,omitempty"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
