package web

import (
	"errors"
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-syncvoice/pkg/hal"
	"github.com/teslashibe/go-syncvoice/pkg/host"
	"github.com/teslashibe/go-syncvoice/pkg/hub"
	"github.com/teslashibe/go-syncvoice/pkg/protocol"
)

// ObjectInfo describes one registered object.
type ObjectInfo struct {
	ID       uint32   `json:"id"`
	Class    string   `json:"class"`
	Owner    uint32   `json:"owner"`
	Active   bool     `json:"active"`
	RefCount uint64   `json:"ref_count"`
	Aliases  []uint32 `json:"aliases,omitempty"`
}

// DeviceInfo describes one device and its sub-objects.
type DeviceInfo struct {
	ID           uint32 `json:"id"`
	UID          string `json:"uid"`
	Name         string `json:"name"`
	SampleRate   uint64 `json:"sample_rate"`
	StartCount   uint64 `json:"start_count"`
	Running      bool   `json:"running"`
	Cycles       uint64 `json:"cycles"`
	InputStream  uint32 `json:"input_stream"`
	OutputStream uint32 `json:"output_stream"`
	InputVolume  uint32 `json:"input_volume"`
	OutputVolume uint32 `json:"output_volume"`
}

// PropertyValue is the body of a property read or write. Exactly one of
// the typed fields is used on write; Data carries raw bytes.
type PropertyValue struct {
	Size    int      `json:"size"`
	Data    []byte   `json:"data,omitempty"`
	Uint32  *uint32  `json:"uint32,omitempty"`
	Float32 *float32 `json:"float32,omitempty"`
	Float64 *float64 `json:"float64,omitempty"`
	String  *string  `json:"string,omitempty"`
}

// handleHealth is the liveness probe
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleStatus returns a summary of the daemon
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"devices":               len(s.driver.PlugIn().DeviceIDs()),
		"objects":               len(s.driver.Registry().Enumerate()),
		"notification_clients":  s.notifyHub.ClientCount(),
		"notifications_dropped": s.notifyHub.Dropped(),
		"config_performed":      s.sim.Performed(),
		"config_aborted":        s.sim.Aborted(),
	})
}

// handleListObjects returns every registered object
func (s *Server) handleListObjects(c *fiber.Ctx) error {
	entries := s.driver.Registry().Enumerate()
	out := make([]ObjectInfo, 0, len(entries))
	for _, e := range entries {
		info := ObjectInfo{
			ID:       uint32(e.ID),
			Class:    e.Class.String(),
			Owner:    uint32(e.Owner),
			Active:   e.Active,
			RefCount: e.RefCount,
		}
		for _, a := range e.Aliases {
			info.Aliases = append(info.Aliases, uint32(a))
		}
		out = append(out, info)
	}
	return c.JSON(out)
}

// handleListDevices returns every attached device
func (s *Server) handleListDevices(c *fiber.Ctx) error {
	devices := s.driver.PlugIn().Devices()
	out := make([]DeviceInfo, 0, len(devices))
	for _, d := range devices {
		ids := d.IDs()
		out = append(out, DeviceInfo{
			ID:           uint32(ids.Device),
			UID:          d.DeviceUID(),
			Name:         d.Name(),
			SampleRate:   d.SampleRate(),
			StartCount:   d.StartCount(),
			Running:      s.sim.Running(ids.Device),
			Cycles:       s.sim.Cycles(ids.Device),
			InputStream:  uint32(ids.InputStream),
			OutputStream: uint32(ids.OutputStream),
			InputVolume:  uint32(ids.InputVolume),
			OutputVolume: uint32(ids.OutputVolume),
		})
	}
	return c.JSON(out)
}

// handleGetProperty reads one property. Query parameters: scope, element,
// qualifier (a string) and as (uint32, float32, float64 or string).
func (s *Server) handleGetProperty(c *fiber.Ctx) error {
	id, addr, err := parseTarget(c)
	if err != nil {
		return badRequest(c, err)
	}

	var qualifier []byte
	if q := c.Query("qualifier"); q != "" {
		qualifier = []byte(q)
	}

	data, err := s.driver.GetProperty(id, 0, addr, qualifier)
	if err != nil {
		return halError(c, err)
	}

	v := PropertyValue{Size: len(data), Data: data}
	if err := v.decode(c.Query("as"), data); err != nil {
		return halError(c, err)
	}
	return c.JSON(v)
}

// handleSetProperty writes one property from a PropertyValue body.
func (s *Server) handleSetProperty(c *fiber.Ctx) error {
	id, addr, err := parseTarget(c)
	if err != nil {
		return badRequest(c, err)
	}

	var v PropertyValue
	if err := c.BodyParser(&v); err != nil {
		return badRequest(c, err)
	}

	if err := s.driver.SetPropertyData(id, 0, addr, nil, v.encode()); err != nil {
		return halError(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// client returns the ?client= query value, or the simulator's own client.
func (s *Server) client(c *fiber.Ctx) hal.ClientID {
	return hal.ClientID(c.QueryInt("client", int(s.sim.Client())))
}

// handleStart starts an IO cycle on a device
func (s *Server) handleStart(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return badRequest(c, err)
	}
	if err := s.sim.Start(id, s.client(c)); err != nil {
		return halError(c, err)
	}
	return c.JSON(fiber.Map{"status": "started", "device_id": id})
}

// handleStop stops an IO cycle on a device
func (s *Server) handleStop(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return badRequest(c, err)
	}
	if err := s.sim.Stop(id, s.client(c)); err != nil {
		if errors.Is(err, host.ErrNotRunning) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		return halError(c, err)
	}
	return c.JSON(fiber.Map{"status": "stopped", "device_id": id})
}

// handleTimeStamp returns the device's current zero timestamp
func (s *Server) handleTimeStamp(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return badRequest(c, err)
	}
	sample, hostTime, seed, err := s.driver.GetZeroTimeStamp(id, 0)
	if err != nil {
		return halError(c, err)
	}
	return c.JSON(protocol.TimeStampData{SampleTime: sample, HostTime: hostTime, Seed: seed})
}

// handleGetNotifications returns recent notifications
func (s *Server) handleGetNotifications(c *fiber.Ctx) error {
	s.notificationsMu.RLock()
	defer s.notificationsMu.RUnlock()
	return c.JSON(s.notifications)
}

// handleNotificationsWS streams notifications to a websocket client
func (s *Server) handleNotificationsWS(c *websocket.Conn) {
	hub.NewClient(s.notifyHub, c).Run()
}

func parseID(c *fiber.Ctx) (hal.ObjectID, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return 0, err
	}
	return hal.ObjectID(id), nil
}

func parseTarget(c *fiber.Ctx) (hal.ObjectID, hal.Address, error) {
	id, err := parseID(c)
	if err != nil {
		return 0, hal.Address{}, err
	}
	element, err := strconv.ParseUint(c.Query("element", "0"), 10, 32)
	if err != nil {
		return 0, hal.Address{}, err
	}
	// Selectors such as "stm#" arrive percent-encoded.
	selector, err := url.PathUnescape(c.Params("selector"))
	if err != nil {
		return 0, hal.Address{}, err
	}
	addr, err := protocol.Address{
		Selector: selector,
		Scope:    c.Query("scope"),
		Element:  uint32(element),
	}.HAL()
	return id, addr, err
}

func (v *PropertyValue) decode(as string, data []byte) error {
	switch as {
	case "":
	case "uint32":
		u, err := hal.Uint32(data)
		if err != nil {
			return err
		}
		v.Uint32 = &u
	case "float32":
		f, err := hal.Float32(data)
		if err != nil {
			return err
		}
		v.Float32 = &f
	case "float64":
		f, err := hal.Float64(data)
		if err != nil {
			return err
		}
		v.Float64 = &f
	case "string":
		str := string(data)
		v.String = &str
	default:
		return hal.ErrIllegalOperation
	}
	return nil
}

func (v *PropertyValue) encode() []byte {
	switch {
	case v.Uint32 != nil:
		return hal.EncodeUint32(*v.Uint32)
	case v.Float32 != nil:
		return hal.EncodeFloat32(*v.Float32)
	case v.Float64 != nil:
		return hal.EncodeFloat64(*v.Float64)
	case v.String != nil:
		return []byte(*v.String)
	}
	return v.Data
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
}

// halError maps a driver error onto an HTTP status.
func halError(c *fiber.Ctx, err error) error {
	status := hal.StatusOf(err)
	code := fiber.StatusInternalServerError
	switch status {
	case hal.StatusBadObject, hal.StatusUnknownProperty:
		code = fiber.StatusNotFound
	case hal.StatusBadPropertySize, hal.StatusIllegalOperation, hal.StatusUnsupportedFormat:
		code = fiber.StatusBadRequest
	case hal.StatusUnsupportedOperation:
		code = fiber.StatusMethodNotAllowed
	case hal.StatusHardware:
		code = fiber.StatusBadGateway
	}
	return c.Status(code).JSON(fiber.Map{
		"error":  err.Error(),
		"status": status.String(),
	})
}
