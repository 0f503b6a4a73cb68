// Package pages holds the static page definitions and their navigation graph.
package pages

import (
	"fmt"
	"sort"

	"github.com/m3rciful/pagebot/core/apperror"
)

// ID identifies a page. It doubles as the payload of the button that opens it.
type ID string

// Reference page identifiers.
const (
	Main      ID = "page_main"
	About     ID = "page_about"
	Portfolio ID = "portfolio"
)

// Format tells the transport how to render page text.
type Format int

const (
	FormatPlain Format = iota
	FormatMarkdown
)

func (f Format) String() string {
	if f == FormatMarkdown {
		return "markdown"
	}
	return "plain"
}

// Transition is one navigational control on a page.
type Transition struct {
	Label  string
	Target ID
	// Back marks a control that returns to the root page.
	Back bool
}

// Page is an immutable unit of content with its outgoing controls in display order.
type Page struct {
	ID          ID
	Title       string
	Content     string
	Format      Format
	Transitions []Transition
}

// Registry resolves page identifiers. It is read-only after construction and
// safe for concurrent use.
type Registry struct {
	root  ID
	pages map[ID]Page
	order []ID
}

// NewRegistry validates pages and builds a registry rooted at root.
// Identifiers must be unique, every transition target must exist, and back
// transitions must lead to the root.
func NewRegistry(root ID, pages ...Page) (*Registry, error) {
	r := &Registry{root: root, pages: make(map[ID]Page, len(pages))}
	for _, p := range pages {
		if p.ID == "" {
			return nil, apperror.Invalid("page.id", "must not be empty")
		}
		if _, dup := r.pages[p.ID]; dup {
			return nil, apperror.Invalid("page.id", fmt.Sprintf("duplicate page %q", p.ID))
		}
		p.Transitions = append([]Transition(nil), p.Transitions...)
		r.pages[p.ID] = p
		r.order = append(r.order, p.ID)
	}
	if _, ok := r.pages[root]; !ok {
		return nil, apperror.Invalid("root", fmt.Sprintf("root page %q is not registered", root))
	}
	for _, id := range r.order {
		for _, t := range r.pages[id].Transitions {
			if _, ok := r.pages[t.Target]; !ok {
				return nil, apperror.Invalid("transition", fmt.Sprintf("page %q links to unknown page %q", id, t.Target))
			}
			if t.Back && t.Target != root {
				return nil, apperror.Invalid("transition", fmt.Sprintf("back control on %q must target %q", id, root))
			}
		}
	}
	return r, nil
}

// Resolve returns the page with the given id or a NotFoundError.
func (r *Registry) Resolve(id ID) (Page, error) {
	p, ok := r.pages[id]
	if !ok {
		return Page{}, apperror.NotFound("page", string(id))
	}
	return p, nil
}

// Root returns the entry page, the fallback for unknown identifiers.
func (r *Registry) Root() Page {
	return r.pages[r.root]
}

// BackControls returns the single control leading back to the root page.
func (r *Registry) BackControls() []Transition {
	return []Transition{{Label: BackLabel, Target: r.root, Back: true}}
}

// IDs lists the registered identifiers sorted alphabetically.
func (r *Registry) IDs() []ID {
	ids := append([]ID(nil), r.order...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
