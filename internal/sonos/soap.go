package sonos

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/kaelwillow/sonocast/internal/protocol"
)

// SoapError wraps a failure from a SOAP round trip to a speaker.
type SoapError struct {
	// Kind classifies the failure for IsTransient and logging.
	Kind SoapErrorKind
	// HTTPStatus is set when Kind == SoapErrorHTTPStatus.
	HTTPStatus int
	// FaultString is set when Kind == SoapErrorFault.
	FaultString string
	Cause       error
}

type SoapErrorKind int

const (
	SoapErrorTransport SoapErrorKind = iota
	SoapErrorHTTPStatus
	SoapErrorFault
	SoapErrorParse
)

func (e *SoapError) Error() string {
	switch e.Kind {
	case SoapErrorHTTPStatus:
		return "HTTP error " + strconv.Itoa(e.HTTPStatus) + ": " + e.Cause.Error()
	case SoapErrorFault:
		return "SOAP fault: " + e.FaultString
	case SoapErrorParse:
		return "failed to parse SOAP response"
	default:
		return "HTTP request failed: " + e.Cause.Error()
	}
}

func (e *SoapError) Unwrap() error { return e.Cause }

// IsTransient reports whether the operation should be retried: Sonos
// transient SOAP fault codes 701 (transition not available), 714 (illegal
// seek target), 716 (resource not found, device still initializing), or a
// network timeout.
func (e *SoapError) IsTransient() bool {
	switch e.Kind {
	case SoapErrorFault:
		msg := e.FaultString
		return strings.Contains(msg, "701") ||
			strings.Contains(msg, "714") ||
			strings.Contains(msg, "716") ||
			strings.Contains(strings.ToLower(msg), "transition")
	case SoapErrorTransport:
		var netErr interface{ Timeout() bool }
		return errors.As(e.Cause, &netErr) && netErr.Timeout()
	default:
		return false
	}
}

// Client sends SOAP requests to Sonos speakers over HTTP.
type Client struct {
	http *http.Client
}

// NewClient returns a Client with the protocol's fixed SOAP timeout.
func NewClient() *Client {
	return &Client{http: &http.Client{Timeout: protocol.SOAPTimeout}}
}

// NewClientWithHTTP builds a Client around a caller-supplied *http.Client,
// letting tests substitute a fake transport instead of a real network.
func NewClientWithHTTP(h *http.Client) *Client {
	return &Client{http: h}
}

// Arg is one ordered SOAP action argument.
type Arg struct {
	Name  string
	Value string
}

// Send builds the SOAP envelope for service/action/args, posts it to ip,
// and returns the raw response body. Detects SOAP faults even on a 200
// status, per the quirks of some Sonos firmware.
func (c *Client) Send(ctx context.Context, ip string, service Service, action string, args []Arg) (string, error) {
	url := BuildSonosURL(ip, service.ControlPath())

	var body strings.Builder
	body.WriteString(`<?xml version="1.0" encoding="utf-8"?><s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/"><s:Body><u:`)
	body.WriteString(action)
	body.WriteString(` xmlns:u="`)
	body.WriteString(service.URN())
	body.WriteString(`">`)
	for _, a := range args {
		body.WriteString("<")
		body.WriteString(a.Name)
		body.WriteString(">")
		body.WriteString(EscapeXML(a.Value))
		body.WriteString("</")
		body.WriteString(a.Name)
		body.WriteString(">")
	}
	body.WriteString("</u:")
	body.WriteString(action)
	body.WriteString("></s:Body></s:Envelope>")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body.String()))
	if err != nil {
		return "", &SoapError{Kind: SoapErrorTransport, Cause: pkgerrors.Wrap(err, "build SOAP request")}
	}
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	req.Header.Set("SOAPAction", `"`+service.URN()+"#"+action+`"`)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &SoapError{Kind: SoapErrorTransport, Cause: pkgerrors.Wrap(err, "SOAP request")}
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &SoapError{Kind: SoapErrorTransport, Cause: pkgerrors.Wrap(err, "read SOAP response")}
	}
	respText := string(respBytes)

	if strings.Contains(respText, "<s:Fault>") || strings.Contains(respText, "<soap:Fault>") {
		faultMsg, ok := ExtractXMLText(respText, "faultstring")
		if !ok {
			faultMsg = "Unknown SOAP fault"
		}
		return "", &SoapError{Kind: SoapErrorFault, FaultString: faultMsg}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &SoapError{Kind: SoapErrorHTTPStatus, HTTPStatus: resp.StatusCode, Cause: errors.New(respText)}
	}

	return respText, nil
}

// withRetryDelays are the fixed exponential backoff delays between SOAP
// retries, applied after the first (immediate) attempt.
var withRetryDelays = []time.Duration{200 * time.Millisecond, 500 * time.Millisecond, time.Second}
