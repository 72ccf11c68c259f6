package services

import (
	"tourneyhost/internal/models"

	"github.com/shopspring/decimal"
)

type CreditPackage struct {
	ID       string            `json:"id"`
	Type     models.WalletType `json:"type"`
	Credits  int64             `json:"credits"`
	Price    decimal.Decimal   `json:"price"`
	Currency string            `json:"currency"`
	Label    string            `json:"label"`
}

// Packages is the purchasable catalog. Prices are in INR.
var Packages = []CreditPackage{
	{ID: "tournament_100", Type: models.WalletTournament, Credits: 100, Price: decimal.NewFromInt(99), Currency: "INR", Label: "100 Tournament Credits"},
	{ID: "tournament_250", Type: models.WalletTournament, Credits: 250, Price: decimal.NewFromInt(239), Currency: "INR", Label: "250 Tournament Credits"},
	{ID: "tournament_550", Type: models.WalletTournament, Credits: 550, Price: decimal.NewFromInt(499), Currency: "INR", Label: "550 Tournament Credits"},
	{ID: "host_1", Type: models.WalletHost, Credits: 1, Price: decimal.NewFromInt(49), Currency: "INR", Label: "1 Host Credit"},
	{ID: "host_5", Type: models.WalletHost, Credits: 5, Price: decimal.NewFromInt(229), Currency: "INR", Label: "5 Host Credits"},
	{ID: "host_12", Type: models.WalletHost, Credits: 12, Price: decimal.NewFromInt(499), Currency: "INR", Label: "12 Host Credits"},
}

func FindPackage(id string) (CreditPackage, bool) {
	for _, pkg := range Packages {
		if pkg.ID == id {
			return pkg, true
		}
	}
	return CreditPackage{}, false
}
