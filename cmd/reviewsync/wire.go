//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"reviewsync/internal/biz"
	"reviewsync/internal/conf"
	"reviewsync/internal/data"
	"reviewsync/internal/server"
	"reviewsync/internal/service"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// wireApp init kratos application.
func wireApp(*conf.Server, *conf.Auth, *conf.Data, *conf.Source, *conf.DataForSEO, *conf.OpenAI, *conf.Ingest, *conf.Annotate, *conf.Kafka, log.Logger) (*kratos.App, func(), error) {
	panic(wire.Build(
		server.ProviderSet,
		data.ProviderSet,
		biz.ProviderSet,
		service.ProviderSet,
		newLocale,
		newIngestOptions,
		newAnnotateOptions,
		newApp,
	))
}
