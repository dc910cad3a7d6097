package aquarius

import "github.com/mtlprog/eventpass/internal/domain"

type ddo struct {
	ID         string `json:"id"`
	ChainID    int64  `json:"chainId"`
	NFTAddress string `json:"nftAddress"`
	Metadata   struct {
		Name string `json:"name"`
	} `json:"metadata"`
	Datatokens []struct {
		Address   string `json:"address"`
		Name      string `json:"name"`
		Symbol    string `json:"symbol"`
		ServiceID string `json:"serviceId"`
	} `json:"datatokens"`
	Services []struct {
		ID               string `json:"id"`
		Type             string `json:"type"`
		Name             string `json:"name"`
		DatatokenAddress string `json:"datatokenAddress"`
		ServiceEndpoint  string `json:"serviceEndpoint"`
		Timeout          *int64 `json:"timeout"`
	} `json:"services"`
}

func (d ddo) toAsset() domain.Asset {
	asset := domain.Asset{
		ID:         d.ID,
		ChainID:    d.ChainID,
		NFTAddress: d.NFTAddress,
		Name:       d.Metadata.Name,
		Datatokens: make([]domain.Datatoken, 0, len(d.Datatokens)),
		Services:   make([]domain.Service, 0, len(d.Services)),
	}
	for _, dt := range d.Datatokens {
		asset.Datatokens = append(asset.Datatokens, domain.Datatoken{
			Address:   dt.Address,
			Name:      dt.Name,
			Symbol:    dt.Symbol,
			ServiceID: dt.ServiceID,
		})
	}
	for _, s := range d.Services {
		asset.Services = append(asset.Services, domain.Service{
			ID:               s.ID,
			Type:             s.Type,
			Name:             s.Name,
			DatatokenAddress: s.DatatokenAddress,
			ServiceEndpoint:  s.ServiceEndpoint,
			Timeout:          s.Timeout,
		})
	}
	return asset
}
