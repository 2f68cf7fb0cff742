// Package companion implements a client for the REST service exposed by the
// HID bridge, which holds the Bluetooth adapter and its bonded devices.
package companion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// DefaultPrefix is the path prefix under which the service exposes its endpoints.
const DefaultPrefix = "/api"

// The different endpoint paths, relative to the prefix.
const (
	pathBondedDevices = "/bonded-devices"
	pathDeleteBond    = "/bonded-devices/delete"
	pathScanMode      = "/scan-mode"
	pathLastConnected = "/last-connected-device"
)

// Options describes the client options.
type Options struct {
	// Prefix is prepended to each endpoint path. Defaults to DefaultPrefix.
	Prefix string

	// Timeout bounds every request. Defaults to 5 seconds.
	Timeout time.Duration

	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client holds a connection to the companion service.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	log     zerolog.Logger

	bonded singleflight.Group
}

// New returns a new client for the service located at server.
func New(server string, opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(server))
	if err != nil {
		return nil, fmt.Errorf("invalid server address %q: %w", server, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" || base.Host == "" {
		return nil, fmt.Errorf("invalid server address %q: an http(s) URL is required", server)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	base = base.JoinPath(prefix)

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		base:    base,
		http:    hc,
		timeout: timeout,
		log:     opts.Logger.With().Str("component", "companion").Logger(),
	}, nil
}

// BaseURL returns the address of the service, including the prefix.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// BondedDevices returns the devices currently bonded to the adapter.
// Concurrent callers share a single request, which is not cancelled
// when one of them gives up.
func (c *Client) BondedDevices(ctx context.Context) ([]Device, error) {
	shared := context.WithoutCancel(ctx)

	ch := c.bonded.DoChan(pathBondedDevices, func() (any, error) {
		ctx, cancel := context.WithTimeout(shared, c.timeout)
		defer cancel()

		var resp BondedDevicesResponse
		if err := c.do(ctx, http.MethodGet, pathBondedDevices, nil, &resp); err != nil {
			return nil, err
		}

		return resp.BondedDevices, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("GET %s: %w", pathBondedDevices, ctx.Err())

	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}

		return slices.Clone(res.Val.([]Device)), nil
	}
}

// DeleteBond removes the bond with the specified device.
// A device which is not bonded yields a result with Deleted set to false,
// and not an error.
func (c *Client) DeleteBond(ctx context.Context, address string, addressType AddressType) (DeleteResult, error) {
	var result DeleteResult

	err := c.do(ctx, http.MethodPost, pathDeleteBond, DeleteRequest{
		Address:     address,
		AddressType: addressType,
	}, &result)
	if err != nil {
		return DeleteResult{}, err
	}

	c.log.Debug().
		Str("address", address).
		Bool("deleted", result.Deleted).
		Str("message", result.Message).
		Msg("delete bond")

	return result, nil
}

// SetScanMode changes which devices the adapter reports while scanning.
func (c *Client) SetScanMode(ctx context.Context, mode ScanMode) error {
	return c.do(ctx, http.MethodPost, pathScanMode, ScanModeRequest{ScanMode: mode}, nil)
}

// LastConnectedDevice returns the most recently bonded device, if one exists.
func (c *Client) LastConnectedDevice(ctx context.Context) (Device, bool, error) {
	var resp LastConnectedResponse
	if err := c.do(ctx, http.MethodGet, pathLastConnected, nil, &resp); err != nil {
		return Device{}, false, err
	}

	if !resp.Exists {
		return Device{}, false, nil
	}
	if resp.LastConnectedDevice == nil {
		return Device{}, false, fmt.Errorf("GET %s: %w: device is missing", pathLastConnected, ErrMalformedResponse)
	}

	return *resp.LastConnectedDevice, true, nil
}

// do sends a request with an optional JSON body, and decodes the JSON reply into out.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader

	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s %s: encode request: %w", method, path, err)
		}

		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), body)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.log.Trace().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("companion request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

		return &StatusError{
			Method: method,
			Path:   path,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(msg)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: %w: %w", method, path, ErrMalformedResponse, err)
	}

	return nil
}
