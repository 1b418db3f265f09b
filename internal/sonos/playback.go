package sonos

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/kaelwillow/sonocast/internal/stream"
)

// PositionInfo is a renderer's current AVTransport playback position,
// used by the latency monitor to compare source and speaker timing.
type PositionInfo struct {
	Track         int
	TrackDuration string
	TrackURI      string
	RelTime       string
	RelTimeMS     int64
}

// ParseRelTimeMS parses a UPnP RelTime string ("H:MM:SS") into milliseconds.
func ParseRelTimeMS(relTime string) int64 {
	parts := strings.Split(relTime, ":")
	if len(parts) != 3 {
		return 0
	}
	h, err1 := strconv.ParseInt(parts[0], 10, 64)
	m, err2 := strconv.ParseInt(parts[1], 10, 64)
	s, err3 := strconv.ParseInt(parts[2], 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0
	}
	return (h*3600 + m*60 + s) * 1000
}

// PlayURI sets a speaker's AVTransport URI to uri with DIDL-Lite metadata
// describing codec/format/meta, then starts playback. Both SOAP actions
// retry on transient faults.
func (c *Client) PlayURI(ctx context.Context, ip, uri string, codec stream.Codec, format stream.AudioFormat, meta *stream.Metadata, artworkURL string) error {
	sonosURI := BuildSonosStreamURI(uri, codec)
	didl := FormatDIDLLite(uri, codec, format, meta, artworkURL)

	slog.Info("sonos: SetAVTransportURI", "ip", ip, "uri", sonosURI)

	_, err := WithRetry(ctx, "SetAVTransportURI", func() (string, error) {
		return c.Send(ctx, ip, AVTransport, "SetAVTransportURI", []Arg{
			{Name: "InstanceID", Value: "0"},
			{Name: "CurrentURI", Value: sonosURI},
			{Name: "CurrentURIMetaData", Value: didl},
		})
	})
	if err != nil {
		return err
	}

	slog.Info("sonos: SetAVTransportURI succeeded, sending Play", "ip", ip)

	_, err = WithRetry(ctx, "Play", func() (string, error) {
		return c.Send(ctx, ip, AVTransport, "Play", []Arg{
			{Name: "InstanceID", Value: "0"},
			{Name: "Speed", Value: "1"},
		})
	})
	return err
}

// Play resumes playback on an already-configured transport, without
// reissuing SetAVTransportURI.
func (c *Client) Play(ctx context.Context, ip string) error {
	slog.Info("sonos: sending Play", "ip", ip)
	_, err := WithRetry(ctx, "Play", func() (string, error) {
		return c.Send(ctx, ip, AVTransport, "Play", []Arg{
			{Name: "InstanceID", Value: "0"},
			{Name: "Speed", Value: "1"},
		})
	})
	return err
}

// Stop stops playback. SOAP fault 701 ("transition not available") means
// the speaker is already stopped, and is treated as success.
func (c *Client) Stop(ctx context.Context, ip string) error {
	_, err := c.Send(ctx, ip, AVTransport, "Stop", []Arg{
		{Name: "InstanceID", Value: "0"},
	})
	if err == nil {
		return nil
	}
	var soapErr *SoapError
	if errors.As(err, &soapErr) && soapErr.Kind == SoapErrorFault && strings.Contains(soapErr.FaultString, "701") {
		slog.Debug("sonos: stop saw 701, speaker already stopped", "ip", ip)
		return nil
	}
	return err
}

// SwitchToQueue points a speaker's AVTransport at its own internal queue,
// clearing the external stream source so the Sonos app doesn't show a
// stale stream after Stop.
func (c *Client) SwitchToQueue(ctx context.Context, ip, coordinatorUUID string) error {
	queueURI := "x-rincon-queue:" + coordinatorUUID + "#0"
	slog.Info("sonos: switching to queue", "ip", ip, "uuid", coordinatorUUID)

	_, err := c.Send(ctx, ip, AVTransport, "SetAVTransportURI", []Arg{
		{Name: "InstanceID", Value: "0"},
		{Name: "CurrentURI", Value: queueURI},
		{Name: "CurrentURIMetaData", Value: ""},
	})
	return err
}

// GetPositionInfo queries AVTransport for the current playback position.
func (c *Client) GetPositionInfo(ctx context.Context, ip string) (PositionInfo, error) {
	resp, err := c.Send(ctx, ip, AVTransport, "GetPositionInfo", []Arg{
		{Name: "InstanceID", Value: "0"},
	})
	if err != nil {
		return PositionInfo{}, err
	}

	track := 0
	if s, ok := ExtractXMLText(resp, "Track"); ok {
		track, _ = strconv.Atoi(s)
	}
	duration, _ := ExtractXMLText(resp, "TrackDuration")
	uri, _ := ExtractXMLText(resp, "TrackURI")
	relTime, ok := ExtractXMLText(resp, "RelTime")
	if !ok {
		relTime = "0:00:00"
	}

	return PositionInfo{
		Track:         track,
		TrackDuration: duration,
		TrackURI:      uri,
		RelTime:       relTime,
		RelTimeMS:     ParseRelTimeMS(relTime),
	}, nil
}
