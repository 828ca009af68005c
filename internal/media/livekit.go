package media

import (
	"context"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"

	"github.com/roomloop/backend/internal/apperr"
)

// LiveKitRoomClient implements RoomClient against a LiveKit server.
type LiveKitRoomClient struct {
	client *lksdk.RoomServiceClient
}

// NewRoomClient creates a room-service client for the given API endpoint.
func NewRoomClient(apiURL, apiKey, apiSecret string) *LiveKitRoomClient {
	return &LiveKitRoomClient{client: lksdk.NewRoomServiceClient(apiURL, apiKey, apiSecret)}
}

func (c *LiveKitRoomClient) ListParticipants(ctx context.Context, room string) ([]*livekit.ParticipantInfo, error) {
	resp, err := c.client.ListParticipants(ctx, &livekit.ListParticipantsRequest{Room: room})
	if err != nil {
		return nil, classify("list participants", err)
	}
	return resp.Participants, nil
}

// LiveKitEgressClient implements EgressClient against a LiveKit server.
type LiveKitEgressClient struct {
	client *lksdk.EgressClient
}

// NewEgressClient creates an egress-service client for the given API endpoint.
func NewEgressClient(apiURL, apiKey, apiSecret string) *LiveKitEgressClient {
	return &LiveKitEgressClient{client: lksdk.NewEgressClient(apiURL, apiKey, apiSecret)}
}

func (c *LiveKitEgressClient) StartRoomComposite(ctx context.Context, req *livekit.RoomCompositeEgressRequest) (*livekit.EgressInfo, error) {
	info, err := c.client.StartRoomCompositeEgress(ctx, req)
	if err != nil {
		return nil, classify("start egress", err)
	}
	return info, nil
}

func (c *LiveKitEgressClient) Stop(ctx context.Context, egressID string) (*livekit.EgressInfo, error) {
	info, err := c.client.StopEgress(ctx, &livekit.StopEgressRequest{EgressId: egressID})
	if err != nil {
		return nil, classify("stop egress", err)
	}
	return info, nil
}

func (c *LiveKitEgressClient) Status(ctx context.Context, egressID string) (*livekit.EgressInfo, error) {
	resp, err := c.client.ListEgress(ctx, &livekit.ListEgressRequest{EgressId: egressID})
	if err != nil {
		return nil, classify("egress status", err)
	}
	if len(resp.Items) == 0 {
		return nil, apperr.NotFound("egress job %s not found", egressID)
	}
	return resp.Items[0], nil
}
