package domain

// WalletFeatures holds the decrypted credit inputs for one subject.
// Produced by the decryption boundary, consumed by scoring, and never
// persisted beyond the lifetime of the request that carried it.
type WalletFeatures struct {
	WalletAge        int64   `json:"walletAge"`        // account age in days
	TransactionCount int64   `json:"transactionCount"` // lifetime transaction count
	SuccessRate      float64 `json:"successRate"`      // fraction of successful transactions, [0,1]
	LPContribution   float64 `json:"lpContribution"`   // liquidity provided, USD
	LiquidationCount int64   `json:"liquidationCount"` // number of liquidation events
}
