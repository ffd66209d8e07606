package httpserver

import "github.com/labstack/echo/v4"

func (s *Server) registerExampleRoutes() {
	s.echo.GET("/example/hello-world", s.handleHelloWorld)
}

func (s *Server) handleHelloWorld(c echo.Context) error {
	return writeOK(c, map[string]string{"hello": "world"})
}
