// Package rtc issues access tokens for the media server. Signing and claim
// layout are delegated to the LiveKit credential library; every token carries
// the same join/publish/subscribe grant.
package rtc

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/livekit/protocol/auth"
)

const tokenValidFor = 24 * time.Hour

// Token is a minted access credential plus everything the client needs to
// connect to the media transport.
type Token struct {
	Token       string `json:"token"`
	EndpointURL string `json:"endpointUrl"`
	Identity    string `json:"identity"`
	RoomName    string `json:"roomName"`
}

// Issuer mints media-server access tokens.
type Issuer struct {
	apiKey    string
	apiSecret string
	wsURL     string
}

// NewIssuer creates a token issuer. wsURL is the client-facing transport
// endpoint returned alongside each token.
func NewIssuer(apiKey, apiSecret, wsURL string) *Issuer {
	return &Issuer{apiKey: apiKey, apiSecret: apiSecret, wsURL: wsURL}
}

// Generate mints a token for room. When identity is empty one is synthesized
// from the current time and a random suffix. Signing errors are surfaced
// verbatim to the caller.
func (i *Issuer) Generate(room, identity string) (*Token, error) {
	if i.apiKey == "" || i.apiSecret == "" {
		return nil, fmt.Errorf("rtc: api key and secret required")
	}
	if identity == "" {
		identity = fmt.Sprintf("guest-%d-%s", time.Now().Unix(), uuid.NewString()[:8])
	}

	canPublish := true
	canSubscribe := true
	grant := &auth.VideoGrant{
		RoomJoin:     true,
		Room:         room,
		CanPublish:   &canPublish,
		CanSubscribe: &canSubscribe,
	}
	at := auth.NewAccessToken(i.apiKey, i.apiSecret).
		SetVideoGrant(grant).
		SetIdentity(identity).
		SetValidFor(tokenValidFor)
	jwt, err := at.ToJWT()
	if err != nil {
		return nil, err
	}
	return &Token{Token: jwt, EndpointURL: i.wsURL, Identity: identity, RoomName: room}, nil
}
