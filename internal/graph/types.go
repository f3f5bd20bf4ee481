package graph

import (
	graphql "github.com/graph-gophers/graphql-go"

	"github.com/sakif/pinmap/internal/model"
)

type userResolver struct{ u model.User }

func (r *userResolver) ID() graphql.ID { return graphql.ID(r.u.ID) }
func (r *userResolver) Name() string { return r.u.Name }
func (r *userResolver) Email() string { return r.u.Email }
func (r *userResolver) Picture() string { return r.u.Picture }

type commentResolver struct{ c model.Comment }

func (r *commentResolver) Text() string { return r.c.Text }
func (r *commentResolver) CreatedAt() graphql.Time { return graphql.Time{Time: r.c.CreatedAt} }
func (r *commentResolver) Author() *userResolver { return &userResolver{u: r.c.Author} }

type pinResolver struct{ p model.Pin }

func newPinResolvers(pins []model.Pin) []*pinResolver {
	out := make([]*pinResolver, len(pins))
	for i := range pins {
		out[i] = &pinResolver{p: pins[i]}
	}
	return out
}

func (r *pinResolver) ID() graphql.ID { return graphql.ID(r.p.ID) }
func (r *pinResolver) Title() string { return r.p.Title }
func (r *pinResolver) Image() string { return r.p.Image }
func (r *pinResolver) Content() string { return r.p.Content }
func (r *pinResolver) Latitude() float64 { return r.p.Latitude }
func (r *pinResolver) Longitude() float64 { return r.p.Longitude }
func (r *pinResolver) CreatedAt() graphql.Time { return graphql.Time{Time: r.p.CreatedAt} }
func (r *pinResolver) Author() *userResolver { return &userResolver{u: r.p.Author} }

func (r *pinResolver) Comments() []*commentResolver {
	out := make([]*commentResolver, len(r.p.Comments))
	for i := range r.p.Comments {
		out[i] = &commentResolver{c: r.p.Comments[i]}
	}
	return out
}
