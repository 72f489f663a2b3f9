package coingecko

import "strings"

// CoinID maps a ticker symbol to the CoinGecko coin id. Returns "" for
// symbols the platform does not trade.
func CoinID(symbol string) string {
	switch strings.ToUpper(strings.TrimSpace(symbol)) {
	case "BTC":
		return "bitcoin"
	case "ETH":
		return "ethereum"
	case "SOL":
		return "solana"
	case "ADA":
		return "cardano"
	case "AVAX":
		return "avalanche-2"
	case "DOT":
		return "polkadot"
	case "MATIC":
		return "matic-network"
	case "ATOM":
		return "cosmos"
	case "LINK":
		return "chainlink"
	case "XRP":
		return "ripple"
	case "LTC":
		return "litecoin"
	case "BNB":
		return "binancecoin"
	case "DOGE":
		return "dogecoin"
	case "NEAR":
		return "near"
	case "ARB":
		return "arbitrum"
	case "OP":
		return "optimism"
	case "USDT":
		return "tether"
	case "USDC":
		return "usd-coin"
	case "DAI":
		return "dai"
	case "PAXG":
		return "pax-gold"
	default:
		return ""
	}
}
