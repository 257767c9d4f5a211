// Package graph exposes the user directory over GraphQL.
package graph

import (
	_ "embed"

	"github.com/graph-gophers/graphql-go"
)

//go:embed schema.graphql
var schemaSDL string

func NewSchema(r *Resolver) (*graphql.Schema, error) {
	return graphql.ParseSchema(schemaSDL, r, graphql.UseFieldResolvers())
}
