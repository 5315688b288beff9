//go:build wireinject

package main

import (
	"github.com/google/wire"

	"chat-relay/internal/infrastructure"
	"chat-relay/internal/interfaces"
)

func CreateApplication() (*Application, error) {
	wire.Build(
		infrastructure.InfrastructureProvider,
		interfaces.InterfacesProvider,
		wire.Struct(new(Application), "*"),
	)
	return nil, nil
}
