package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/berfenger/scpiconsole/internal/core/domain"
	"github.com/berfenger/scpiconsole/internal/core/service"
	"github.com/berfenger/scpiconsole/pkg/scpi"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`
}

type catalogResponse struct {
	Device   deviceView    `json:"device"`
	Commands []commandView `json:"commands"`
}

type deviceView struct {
	Address  string `json:"address"`
	Channels uint8  `json:"channels"`
}

type commandView struct {
	Name    string   `json:"name"`
	Channel bool     `json:"channel"`
	Scpi    string   `json:"scpi"`
	Values  []string `json:"values"`
}

type expandResponse struct {
	Command string `json:"command"`
}

type connectRequest struct {
	Address string `json:"address"`
	IP      string `json:"ip"`
	Port    string `json:"port"`
}

type sendRequest struct {
	service.CommandRequest
	AwaitReply bool `json:"await_reply"`
}

type sendResponse struct {
	Command string  `json:"command"`
	Written int     `json:"written"`
	Reply   *string `json:"reply,omitempty"`
}

type receiveResponse struct {
	Reply string `json:"reply"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	if s.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(s.metrics))
	}

	api := e.Group("/api")
	api.GET("/catalog", s.CatalogHandler)
	api.POST("/expand", s.ExpandHandler)
	api.POST("/connect", s.ConnectHandler)
	api.POST("/send", s.SendHandler)
	api.POST("/receive", s.ReceiveHandler)
	api.GET("/session", s.SessionHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) CatalogHandler(c echo.Context) error {
	resp := catalogResponse{
		Device: deviceView{
			Address:  s.catalog.Device.Address,
			Channels: s.catalog.Device.Channels,
		},
		Commands: make([]commandView, 0, len(s.catalog.Commands)),
	}
	for _, cmd := range s.catalog.Commands {
		resp.Commands = append(resp.Commands, commandView{
			Name:    cmd.Name,
			Channel: cmd.PerChannel,
			Scpi:    cmd.Template,
			Values:  cmd.AllowedValues,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) ExpandHandler(c echo.Context) error {
	var req service.CommandRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	line, err := s.resolver.Resolve(req)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, expandResponse{Command: line})
}

func (s *Server) ConnectHandler(c echo.Context) error {
	var req connectRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	address := req.Address
	if req.IP != "" {
		address = scpi.JoinAddress(req.IP, req.Port)
	}
	if address == "" {
		address = s.catalog.Device.Address
	}
	if _, err := scpi.ParseAddress(address); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	res, err := s.request(domain.ConnectRequest{Address: address})
	if err != nil {
		return s.errorJSON(c, err)
	}
	resp, ok := res.(domain.ConnectResponse)
	if !ok {
		return s.unexpected(c, res)
	}
	if resp.HasResponseError() {
		return s.errorJSON(c, resp.GetResponseError())
	}
	return c.JSON(http.StatusOK, resp.Status)
}

func (s *Server) SendHandler(c echo.Context) error {
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	line, err := s.resolver.Resolve(req.CommandRequest)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	res, err := s.request(domain.SendCommandRequest{Command: line, AwaitReply: req.AwaitReply})
	if err != nil {
		return s.errorJSON(c, err)
	}
	resp, ok := res.(domain.SendCommandResponse)
	if !ok {
		return s.unexpected(c, res)
	}
	if resp.HasResponseError() {
		return s.errorJSON(c, resp.GetResponseError())
	}
	out := sendResponse{Command: line, Written: resp.Written}
	if resp.Replied {
		out.Reply = &resp.Reply
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) ReceiveHandler(c echo.Context) error {
	res, err := s.request(domain.ReceiveRequest{})
	if err != nil {
		return s.errorJSON(c, err)
	}
	resp, ok := res.(domain.ReceiveResponse)
	if !ok {
		return s.unexpected(c, res)
	}
	if resp.HasResponseError() {
		return s.errorJSON(c, resp.GetResponseError())
	}
	return c.JSON(http.StatusOK, receiveResponse{Reply: resp.Reply})
}

func (s *Server) SessionHandler(c echo.Context) error {
	res, err := s.request(domain.GetSessionStatusRequest{})
	if err != nil {
		return s.errorJSON(c, err)
	}
	resp, ok := res.(domain.GetSessionStatusResponse)
	if !ok {
		return s.unexpected(c, res)
	}
	return c.JSON(http.StatusOK, resp.Status)
}

func (s *Server) request(msg domain.SessionRequest) (any, error) {
	res, err := s.rootContext.RequestFuture(s.masterActor, msg, s.requestTimeout).Result()
	if err != nil {
		// future timed out waiting for the session
		return nil, &scpi.IoError{Kind: scpi.TimedOut, Err: err}
	}
	return res, nil
}

func (s *Server) errorJSON(c echo.Context, err error) error {
	return c.JSON(statusForError(err), errorResponse{Error: err.Error()})
}

func (s *Server) unexpected(c echo.Context, res any) error {
	s.logger.Error("unexpected session response", zap.Any("response", res))
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: "unexpected session response"})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, scpi.ErrNotConnected):
		return http.StatusConflict
	case errors.Is(err, scpi.ErrTimedOut):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
