package interfaces

import (
	"github.com/google/wire"

	"chat-relay/internal/interfaces/httpserver"
	"chat-relay/internal/interfaces/httpserver/handlers/relayhandler"
)

var InterfacesProvider = wire.NewSet(
	relayhandler.NewRelayHandler,
	httpserver.NewHttpServer,
)
