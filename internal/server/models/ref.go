package models

// EntityKind names a node type in the ownership graph.
type EntityKind string

const (
	KindMap        EntityKind = "map"
	KindCollection EntityKind = "collection"
	KindMarker     EntityKind = "marker"
	KindArticle    EntityKind = "article"
	KindMedia      EntityKind = "media"
)

// EntityRef identifies one entity of the graph.
type EntityRef struct {
	Kind EntityKind
	ID   string
}

func MapRef(id string) EntityRef        { return EntityRef{Kind: KindMap, ID: id} }
func CollectionRef(id string) EntityRef { return EntityRef{Kind: KindCollection, ID: id} }
func MarkerRef(id string) EntityRef     { return EntityRef{Kind: KindMarker, ID: id} }
func ArticleRef(id string) EntityRef    { return EntityRef{Kind: KindArticle, ID: id} }
func MediaRef(id string) EntityRef      { return EntityRef{Kind: KindMedia, ID: id} }

func (r EntityRef) String() string {
	return string(r.Kind) + ":" + r.ID
}
