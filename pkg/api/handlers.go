package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"

	"github.com/google/uuid"
	"github.com/japaniel/cncbits/pkg/db"
	"github.com/japaniel/cncbits/pkg/generate"
	"github.com/japaniel/cncbits/pkg/store"
	"github.com/labstack/echo/v4"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// CoordinateUpdate is the body of PUT /api/v1/coordinates/:id.
type CoordinateUpdate struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
	Z *float64 `json:"z"`
}

// GenerateResponse describes the program that was written.
type GenerateResponse struct {
	Operation string  `json:"operation"`
	BitID     string  `json:"bit_id"`
	BitName   string  `json:"bit_name"`
	Filename  string  `json:"filename"`
	Path      string  `json:"path"`
	Z         float64 `json:"z"`
	Program   string  `json:"program"`
}

// HandleError writes an ErrorResponse and logs the failure.
func (s *Server) HandleError(c echo.Context, err error, message string, code int) error {
	resp := ErrorResponse{Error: message, Message: message, Code: code}
	if err != nil {
		resp.Error = err.Error()
	}
	level := slog.LevelWarn
	if code >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(c.Request().Context(), level, "api error",
		"message", message,
		"error", resp.Error,
		"code", code,
		"path", c.Request().URL.Path,
		"method", c.Request().Method)
	return c.JSON(code, resp)
}

// ListBits returns the bit catalog.
func (s *Server) ListBits(c echo.Context) error {
	bits, err := s.store.ListBits(c.Request().Context())
	if err != nil {
		return s.HandleError(c, err, "Failed to list router bits", http.StatusServiceUnavailable)
	}
	if bits == nil {
		bits = []db.RouterBit{}
	}
	return c.JSON(http.StatusOK, bits)
}

// CreateBit adds a bit to the catalog with a zeroed coordinate record.
func (s *Server) CreateBit(c echo.Context) error {
	var b db.RouterBit
	if err := json.NewDecoder(c.Request().Body).Decode(&b); err != nil {
		return s.HandleError(c, err, "Invalid router bit payload", http.StatusBadRequest)
	}
	created, err := s.store.CreateBit(c.Request().Context(), b)
	switch {
	case err == nil:
		return c.JSON(http.StatusCreated, created)
	case errors.Is(err, store.ErrInvalidBit):
		return s.HandleError(c, err, "Invalid router bit", http.StatusBadRequest)
	case errors.Is(err, store.ErrDuplicateBit):
		return s.HandleError(c, err, "Router bit already exists", http.StatusConflict)
	default:
		return s.HandleError(c, err, "Failed to create router bit", http.StatusServiceUnavailable)
	}
}

// ListCoordinates returns every stored coordinate record.
func (s *Server) ListCoordinates(c echo.Context) error {
	coords, err := s.store.ListCoordinates(c.Request().Context())
	if err != nil {
		return s.HandleError(c, err, "Failed to list bit coordinates", http.StatusServiceUnavailable)
	}
	if coords == nil {
		coords = []db.BitCoordinate{}
	}
	return c.JSON(http.StatusOK, coords)
}

// UpdateCoordinate overwrites x, y and z for one bit.
func (s *Server) UpdateCoordinate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return s.HandleError(c, err, "Invalid bit id", http.StatusBadRequest)
	}
	var u CoordinateUpdate
	if err := json.NewDecoder(c.Request().Body).Decode(&u); err != nil {
		return s.HandleError(c, err, "Invalid coordinate payload", http.StatusBadRequest)
	}
	if err := u.validate(); err != nil {
		return s.HandleError(c, err, "Invalid coordinate payload", http.StatusBadRequest)
	}

	ctx := c.Request().Context()
	err = s.store.PutCoordinate(ctx, id, *u.X, *u.Y, *u.Z)
	switch {
	case errors.Is(err, store.ErrBitNotFound):
		return s.HandleError(c, err, "Router bit not found", http.StatusNotFound)
	case errors.Is(err, store.ErrInvalidCoordinate):
		return s.HandleError(c, err, "Invalid coordinate payload", http.StatusBadRequest)
	case err != nil:
		return s.HandleError(c, err, "Failed to update bit coordinate", http.StatusServiceUnavailable)
	}

	updated, err := s.store.GetCoordinate(ctx, id)
	if err != nil {
		return s.HandleError(c, err, "Failed to read bit coordinate", http.StatusServiceUnavailable)
	}
	return c.JSON(http.StatusOK, updated)
}

func (u CoordinateUpdate) validate() error {
	for name, v := range map[string]*float64{"x": u.X, "y": u.Y, "z": u.Z} {
		if v == nil {
			return fmt.Errorf("%s is required", name)
		}
		if math.IsNaN(*v) || math.IsInf(*v, 0) {
			return fmt.Errorf("%s must be a finite number", name)
		}
	}
	return nil
}

// Generate writes the program named by the :operation path parameter.
func (s *Server) Generate(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodySize))
	if err != nil {
		return s.HandleError(c, err, "Failed to read request body", http.StatusBadRequest)
	}
	req, err := generate.ParseRequest(body)
	if err != nil {
		return s.HandleError(c, err, "Invalid generate request", http.StatusBadRequest)
	}
	req.Operation = c.Param("operation")

	res, err := s.generator.GenerateRequest(c.Request().Context(), req)
	if err != nil {
		return s.HandleError(c, err, generateMessage(err), statusForKind(generate.KindOf(err)))
	}
	return c.JSON(http.StatusOK, GenerateResponse{
		Operation: res.Operation.String(),
		BitID:     res.Resolved.BitID.String(),
		BitName:   res.Resolved.Name,
		Filename:  res.Filename,
		Path:      res.Path,
		Z:         res.Resolved.Z,
		Program:   res.Program,
	})
}

func statusForKind(k generate.Kind) int {
	switch k {
	case generate.KindRequestMalformed:
		return http.StatusBadRequest
	case generate.KindBitNotFound:
		return http.StatusNotFound
	case generate.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func generateMessage(err error) string {
	switch generate.KindOf(err) {
	case generate.KindRequestMalformed:
		return "Invalid generate request"
	case generate.KindBitNotFound:
		return "Router bit not found"
	case generate.KindStoreUnavailable:
		return "Coordinate store unavailable"
	default:
		return "Failed to write G-code file"
	}
}
