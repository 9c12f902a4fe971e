package api

import (
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/levishimwe/Hadathub/docs"
	v1 "github.com/levishimwe/Hadathub/internal/api/handler/v1"
	"github.com/levishimwe/Hadathub/internal/api/middleware"
	"github.com/levishimwe/Hadathub/internal/config"
)

// Services are the engine entry points the HTTP layer drives.
type Services struct {
	Venues   v1.VenueService
	Events   v1.EventService
	Tickets  v1.TicketService
	CheckIns v1.CheckInService
	Feed     *v1.CheckInFeed
}

type Server struct {
	Config *config.AppConfig
	Router *gin.Engine
}

func NewServer(conf *config.AppConfig, svcs Services) *Server {
	gin.SetMode(conf.Gin.Mode)
	engine := gin.New()

	s := &Server{
		Config: conf,
		Router: engine,
	}

	s.MountMiddlewares()
	s.MountHandlers(
		v1.NewVenueHandler(svcs.Venues),
		v1.NewEventHandler(svcs.Events),
		v1.NewTicketHandler(svcs.Tickets, s.qrSize()),
		v1.NewCheckInHandler(svcs.CheckIns),
		svcs.Feed,
	)

	return s
}

func (s *Server) qrSize() int {
	if s.Config.QR == nil {
		return 0
	}
	return s.Config.QR.PNGSize
}

func (s *Server) MountMiddlewares() {
	s.Router.Use(gin.Recovery())
	s.Router.Use(requestid.New())
	s.Router.Use(middleware.RequestLogger())
	s.Router.Use(middleware.ConfigCORS(s.Config.API.AllowedCORSDomains))
}

func (s *Server) MountHandlers(
	venueHandler *v1.VenueHandler,
	eventHandler *v1.EventHandler,
	ticketHandler *v1.TicketHandler,
	checkInHandler *v1.CheckInHandler,
	feed *v1.CheckInFeed,
) {
	const basePath = "/api/v1"

	api := s.Router.Group(basePath, middleware.NewAuthenticator(s.Config.API.JWTSigningKey).VerifyJWT())
	{
		api.POST("/venues", venueHandler.HandleCreateVenue)
		api.GET("/venues/:venueID", venueHandler.HandleGetVenue)
		api.PATCH("/venues/:venueID/capacity", venueHandler.HandleUpdateVenueCapacity)

		api.POST("/events", eventHandler.HandleCreateEvent)
		api.GET("/events/:eventID", eventHandler.HandleGetEvent)
		api.PATCH("/events/:eventID/schedule", eventHandler.HandleUpdateSchedule)
		api.PATCH("/events/:eventID/capacity", eventHandler.HandleSetCapacityOverride)
		api.POST("/events/:eventID/publish", eventHandler.HandlePublishEvent)
		api.POST("/events/:eventID/cancel", eventHandler.HandleCancelEvent)
		api.DELETE("/events/:eventID", eventHandler.HandleDeleteEvent)
		api.GET("/events/:eventID/availability", eventHandler.HandleAvailability)

		api.POST("/events/:eventID/tickets", ticketHandler.HandlePurchase)
		api.GET("/tickets/:ticketID", ticketHandler.HandleGetTicket)
		api.GET("/tickets/:ticketID/qr", ticketHandler.HandleTicketQR)
		api.POST("/tickets/:ticketID/pay", ticketHandler.HandleConfirmPayment)
		api.POST("/tickets/:ticketID/cancel", ticketHandler.HandleCancelTicket)
		api.GET("/users/me/tickets", ticketHandler.HandleListMyTickets)

		api.POST("/checkins/scan", checkInHandler.HandleScan)
		api.POST("/checkins/bulk", checkInHandler.HandleBulkScan)
		if feed != nil {
			api.GET("/events/:eventID/checkins/live", feed.HandleLiveCheckIns)
		}
	}

	s.Router.GET("/", v1.HandleHealthcheck)

	// Setup Swagger UI.
	docs.SwaggerInfo.Host = s.Config.API.BaseURL
	docs.SwaggerInfo.BasePath = basePath
	docs.SwaggerInfo.Title = "Hadathub API"
	docs.SwaggerInfo.Description = "Capacity and scheduling consistency engine for event ticketing."
	docs.SwaggerInfo.Version = "1.0"
	s.Router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))
}
