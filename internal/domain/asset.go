package domain

// Asset is the subset of a DDO (metadata document) needed to resolve access.
type Asset struct {
	ID         string      `json:"id"`
	ChainID    int64       `json:"chainId"`
	NFTAddress string      `json:"nftAddress"`
	Name       string      `json:"name,omitempty"`
	Datatokens []Datatoken `json:"datatokens"`
	Services   []Service   `json:"services"`
}

// Datatoken is a datatoken declared on an asset.
type Datatoken struct {
	Address   string `json:"address"`
	Name      string `json:"name"`
	Symbol    string `json:"symbol"`
	ServiceID string `json:"serviceId"`
}

// Service is one purchasable service of an asset. Each event slot maps to a
// service. Timeout is in seconds, zero meaning perpetual access; nil when the
// DDO does not declare it.
type Service struct {
	ID               string `json:"id"`
	Type             string `json:"type"`
	Name             string `json:"name,omitempty"`
	DatatokenAddress string `json:"datatokenAddress"`
	ServiceEndpoint  string `json:"serviceEndpoint"`
	Timeout          *int64 `json:"timeout"`
}
