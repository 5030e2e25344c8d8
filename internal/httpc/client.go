// Package httpc provides a shared HTTP client with sensible defaults and a
// typed client for the daemon's REST API.
package httpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/teslashibe/go-syncvoice/pkg/protocol"
	"github.com/teslashibe/go-syncvoice/pkg/web"
)

// Default timeouts for HTTP operations.
const (
	DefaultTimeout         = 30 * time.Second
	DefaultConnectTimeout  = 10 * time.Second
	DefaultKeepAlive       = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
)

// Client is a shared HTTP client with production-ready defaults.
// Use this instead of http.DefaultClient.
var Client = NewClient(DefaultTimeout)

// NewClient creates a new HTTP client with the specified timeout.
// For most cases, use the shared Client variable instead.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DefaultConnectTimeout,
				KeepAlive: DefaultKeepAlive,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       DefaultIdleConnTimeout,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// APIError is a non-2xx reply from the daemon.
type APIError struct {
	Code    int
	Status  string // Four-char status code, when the daemon sent one
	Message string
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("daemon: %d %s: %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("daemon: %d: %s", e.Code, e.Message)
}

// ErrNoBaseURL is returned by NewAPI for an empty base URL.
var ErrNoBaseURL = errors.New("httpc: base url is required")

// API talks to the daemon's REST API.
type API struct {
	base string
	http *http.Client
}

// NewAPI creates an API client for base, e.g. "http://localhost:8790".
// A nil client uses the shared Client.
func NewAPI(base string, client *http.Client) (*API, error) {
	if base == "" {
		return nil, ErrNoBaseURL
	}
	if client == nil {
		client = Client
	}
	return &API{base: base, http: client}, nil
}

func (a *API) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.base+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Code: resp.StatusCode, Message: string(data)}
		var reply struct {
			Error  string `json:"error"`
			Status string `json:"status"`
		}
		if json.Unmarshal(data, &reply) == nil && reply.Error != "" {
			apiErr.Message = reply.Error
			apiErr.Status = reply.Status
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

// Objects lists every registered object.
func (a *API) Objects(ctx context.Context) ([]web.ObjectInfo, error) {
	var out []web.ObjectInfo
	return out, a.do(ctx, http.MethodGet, "/api/objects", nil, &out)
}

// Devices lists every attached device.
func (a *API) Devices(ctx context.Context) ([]web.DeviceInfo, error) {
	var out []web.DeviceInfo
	return out, a.do(ctx, http.MethodGet, "/api/devices", nil, &out)
}

// GetProperty reads a property. as selects a decoded view ("uint32",
// "float32", "float64", "string" or "" for raw bytes only).
func (a *API) GetProperty(ctx context.Context, id uint32, addr protocol.Address, as string) (*web.PropertyValue, error) {
	q := url.Values{}
	if addr.Scope != "" {
		q.Set("scope", addr.Scope)
	}
	if addr.Element != 0 {
		q.Set("element", strconv.FormatUint(uint64(addr.Element), 10))
	}
	if as != "" {
		q.Set("as", as)
	}
	path := propertyPath(id, addr.Selector)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out web.PropertyValue
	if err := a.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetProperty writes a property.
func (a *API) SetProperty(ctx context.Context, id uint32, addr protocol.Address, v web.PropertyValue) error {
	path := propertyPath(id, addr.Selector)
	if addr.Scope != "" {
		path += "?scope=" + url.QueryEscape(addr.Scope)
	}
	return a.do(ctx, http.MethodPut, path, v, nil)
}

// SetSampleRate requests a nominal sample rate change on a device.
func (a *API) SetSampleRate(ctx context.Context, deviceID uint32, hz float64) error {
	return a.SetProperty(ctx, deviceID, protocol.Address{Selector: "nsrt"}, web.PropertyValue{Float64: &hz})
}

// SetVolume sets a volume control's scalar value.
func (a *API) SetVolume(ctx context.Context, controlID uint32, scalar float32) error {
	return a.SetProperty(ctx, controlID, protocol.Address{Selector: "lcsv"}, web.PropertyValue{Float32: &scalar})
}

// Start starts IO on a device.
func (a *API) Start(ctx context.Context, deviceID uint32) error {
	return a.do(ctx, http.MethodPost, devicePath(deviceID, "start"), nil, nil)
}

// Stop stops IO on a device.
func (a *API) Stop(ctx context.Context, deviceID uint32) error {
	return a.do(ctx, http.MethodPost, devicePath(deviceID, "stop"), nil, nil)
}

// TimeStamp reads a device's zero timestamp.
func (a *API) TimeStamp(ctx context.Context, deviceID uint32) (*protocol.TimeStampData, error) {
	var out protocol.TimeStampData
	if err := a.do(ctx, http.MethodGet, devicePath(deviceID, "timestamp"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func propertyPath(id uint32, selector string) string {
	return "/api/objects/" + strconv.FormatUint(uint64(id), 10) + "/properties/" + url.PathEscape(selector)
}

func devicePath(id uint32, action string) string {
	return "/api/devices/" + strconv.FormatUint(uint64(id), 10) + "/" + action
}
