package pipeline

// ChunkKind tells the consumer how to render a chunk's payload.
type ChunkKind string

const (
	ChunkText          ChunkKind = "text"
	ChunkFileReference ChunkKind = "file_reference"
	ChunkChartConfig   ChunkKind = "chart_config"
	ChunkTableMarkup   ChunkKind = "table_markup"
	ChunkSchemaInfo    ChunkKind = "schema_info"
)

// Chunk is the unit streamed to the outside world. Exactly one chunk per run
// carries Final=true, and it is the last one.
type Chunk struct {
	Kind    ChunkKind `json:"content_kind"`
	Stage   string    `json:"stage,omitempty"`
	Payload any       `json:"payload"`
	Final   bool      `json:"is_final"`
}

// Emitter receives chunks as soon as they are produced.
type Emitter func(Chunk)
