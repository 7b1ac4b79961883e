package models

import "time"

// AssetHolding is one entry of a wallet's asset breakdown.
type AssetHolding struct {
	Balance  float64 `json:"balance"`
	ValueUSD float64 `json:"value_usd"`
}

// Transaction data provenance labels.
const (
	TxSourceExplorer     = "explorer"      // Blockscout transaction list
	TxSourceNodeEstimate = "node_estimate" // approximate, derived from account nonce and block time
	TxSourceNone         = "none"          // all transaction sources failed
)

// WalletMetrics 单个地址的链上指标快照
type WalletMetrics struct {
	WalletAgeDays          int                     `json:"wallet_age_days"`
	TransactionCount       int                     `json:"transaction_count"`
	EthBalance             float64                 `json:"eth_balance"`
	LiquidationCount       int                     `json:"liquidation_count"`
	StablecoinPercentage   float64                 `json:"stablecoin_percentage"`
	BalanceStabilityScore  float64                 `json:"balance_stability_score"`
	TotalPortfolioValueUSD float64                 `json:"total_portfolio_value_usd"`
	FirstTransactionTime   *int64                  `json:"first_transaction_timestamp"`
	LastTransactionTime    *int64                  `json:"last_transaction_timestamp"`
	AssetBreakdown         map[string]AssetHolding `json:"asset_breakdown"`
	TxDataSource           string                  `json:"tx_data_source,omitempty"`
	Error                  string                  `json:"error,omitempty"`
}

// Score result model tags.
const (
	ModelRuleBased         = "rule_based"
	ModelEnsemble          = "ml_ensemble"
	ModelRuleBasedFallback = "rule_based_fallback"
)

// ScoreResult 评分结果
type ScoreResult struct {
	Score      int                `json:"score"`
	ModelType  string             `json:"model_type"`
	Confidence float64            `json:"confidence"`
	SubScores  map[string]float64 `json:"sub_scores"`
}

// AttestationUpdate is the tuple the oracle contract verifies. Nonce is read
// from the contract at signing time; Deadline is epoch seconds.
type AttestationUpdate struct {
	User     string `json:"user"`
	Score    int    `json:"score"`
	Version  int    `json:"version"`
	Nonce    uint64 `json:"nonce"`
	Deadline int64  `json:"deadline"`
}

// SignedAttestation 签名后的分数更新
type SignedAttestation struct {
	Update    AttestationUpdate `json:"update"`
	Signature string            `json:"signature"`
	Signer    string            `json:"signer"`
}

// ScoreUpdate is one item of a batch submission request.
type ScoreUpdate struct {
	User  string `json:"user"`
	Score int    `json:"score"`
}

// SubmissionOutcome is the terminal result of a single oracle submission
// attempt. User and Score echo the request for correlation.
type SubmissionOutcome struct {
	Success         bool   `json:"success"`
	TransactionHash string `json:"transaction_hash,omitempty"`
	GasUsed         uint64 `json:"gas_used,omitempty"`
	Error           string `json:"error,omitempty"`
	User            string `json:"user"`
	Score           int    `json:"score"`
}

// BatchOutcome 批量提交结果
type BatchOutcome struct {
	Success           bool                `json:"success"`
	TotalUpdates      int                 `json:"total_updates"`
	SuccessfulUpdates int                 `json:"successful_updates"`
	FailedUpdates     int                 `json:"failed_updates"`
	Results           []SubmissionOutcome `json:"results"`
}

// ScoreRecord is one persisted score_history row.
type ScoreRecord struct {
	Address    string    `json:"address"`
	Score      int       `json:"score"`
	ModelType  string    `json:"model_type"`
	Confidence float64   `json:"confidence"`
	Version    string    `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
}
