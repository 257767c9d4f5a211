// Package graph exposes the auth server's GraphQL API.
package graph

import (
	_ "embed"

	"github.com/graph-gophers/graphql-go"
)

//go:embed schema.graphql
var schemaSDL string

// NewSchema parses the schema and binds it to r.
func NewSchema(r *Resolver) (*graphql.Schema, error) {
	return graphql.ParseSchema(schemaSDL, r, graphql.UseFieldResolvers())
}
