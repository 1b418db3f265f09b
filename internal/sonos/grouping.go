package sonos

import (
	"context"
	"log/slog"
)

// JoinGroup points ip's AVTransport at coordinatorUUID via the x-rincon:
// scheme and starts playback, making ip a synchronized slave of the
// coordinator. This is a temporary grouping for streaming purposes only; it
// does not touch the user's saved Sonos group configuration.
func (c *Client) JoinGroup(ctx context.Context, ip, coordinatorUUID string) error {
	groupURI := "x-rincon:" + coordinatorUUID

	slog.Info("sonos: joining group", "ip", ip, "coordinator", coordinatorUUID)

	_, err := WithRetry(ctx, "SetAVTransportURI", func() (string, error) {
		return c.Send(ctx, ip, AVTransport, "SetAVTransportURI", []Arg{
			{Name: "InstanceID", Value: "0"},
			{Name: "CurrentURI", Value: groupURI},
			{Name: "CurrentURIMetaData", Value: ""},
		})
	})
	if err != nil {
		return err
	}

	_, err = WithRetry(ctx, "Play", func() (string, error) {
		return c.Send(ctx, ip, AVTransport, "Play", []Arg{
			{Name: "InstanceID", Value: "0"},
			{Name: "Speed", Value: "1"},
		})
	})
	if err != nil {
		return err
	}

	slog.Debug("sonos: join group succeeded", "ip", ip)
	return nil
}

// LeaveGroup makes ip become the coordinator of its own standalone group.
// Idempotent: safe to call on a speaker that is already standalone.
func (c *Client) LeaveGroup(ctx context.Context, ip string) error {
	slog.Info("sonos: leaving group", "ip", ip)

	_, err := c.Send(ctx, ip, AVTransport, "BecomeCoordinatorOfStandaloneGroup", []Arg{
		{Name: "InstanceID", Value: "0"},
	})
	if err != nil {
		return err
	}

	slog.Debug("sonos: leave group succeeded", "ip", ip)
	return nil
}
