package signerd

const (
	PathAddress = "/api/v1/address"
	PathSign    = "/api/v1/sign"
	PathHealth  = "/api/v1/health"
	PathMetrics = "/api/v1/metrics"
)

type AddressResponse struct {
	Address string `json:"address"`
}

// SignRequest carries an unsigned transaction in its binary (EIP-2718) hex
// encoding.
type SignRequest struct {
	ChainID string `json:"chainId"`
	Tx      string `json:"tx"`
}

type SignResponse struct {
	Address  string `json:"address"`
	SignedTx string `json:"signedTx"`
	Hash     string `json:"hash"`
}
