package plugins

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/linht/gate-remote/radio"
	"github.com/linht/gate-remote/rfm69"
)

// APIResponse is the JSON envelope of every /api route
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// SendSuccess wraps data in a successful response
func SendSuccess(c *fiber.Ctx, data interface{}) error {
	return c.JSON(APIResponse{Success: true, Data: data})
}

// SendError reports err with a status derived from its kind: unknown
// registers are the caller's fault, a missing transceiver is temporary
func SendError(c *fiber.Ctx, err error) error {
	return c.Status(errorStatus(err)).JSON(APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

func errorStatus(err error) int {
	var unknown *rfm69.UnknownRegisterError
	switch {
	case errors.As(err, &unknown):
		return fiber.StatusBadRequest
	case errors.Is(err, radio.ErrDeviceUnavailable):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}
