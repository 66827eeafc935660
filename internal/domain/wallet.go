/**
 * @description
 * This file defines the wallet-endpoint model: the resolved public metadata
 * of a network-addressable wallet, covering the asset it holds and the
 * authorization and resource servers that govern it. Every payment flow
 * starts by resolving one or two of these.
 */

package domain

// WalletEndpoint is the resolved metadata of a network-addressable wallet.
// It is immutable once resolved; the service re-resolves it per operation and
// never caches across requests, since the authoritative copy lives on the
// payment network.
type WalletEndpoint struct {
	ID             string `json:"id"`
	PublicName     string `json:"displayName"`
	AssetCode      string `json:"assetCode"`
	AssetScale     int    `json:"assetScale"`
	AuthServer     string `json:"authServer"`
	ResourceServer string `json:"resourceServer"`
}
