package domain

import (
	"time"
)

// Endpoint описывает опубликованный pipeline endpoint.
//
// Endpoint задаёт стабильное имя, за которым хранится история версий пайплайна.
// Эндпоинт никогда не перезаписывается и не удаляется: новая публикация
// только добавляет версию и делает её версией по умолчанию.
type Endpoint struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// DefaultVersion указывает версию, которую запускает submit без явной версии.
	DefaultVersion int `json:"default_version"`

	// Versions содержит все версии в порядке публикации.
	Versions []EndpointVersion `json:"versions,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// EndpointVersion связывает endpoint с конкретным опубликованным пайплайном.
type EndpointVersion struct {
	// Version начинается с 1 и растёт на единицу при каждой публикации.
	Version    int       `json:"version"`
	PipelineID string    `json:"pipeline_id"`
	IsDefault  bool      `json:"is_default"`
	CreatedAt  time.Time `json:"created_at"`
}

// LatestVersion возвращает последнюю версию endpoint.
func (e *Endpoint) LatestVersion() (EndpointVersion, bool) {
	if len(e.Versions) == 0 {
		return EndpointVersion{}, false
	}
	latest := e.Versions[0]
	for _, v := range e.Versions[1:] {
		if v.Version > latest.Version {
			latest = v
		}
	}
	return latest, true
}

// PublishedPipeline описывает неизменяемый снимок пайплайна в сервисе.
type PublishedPipeline struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// PublishOp задаёт способ публикации пайплайна под именем endpoint.
type PublishOp string

const (
	// PublishCreate создаёт новый endpoint с первой версией.
	PublishCreate PublishOp = "create"

	// PublishAddVersion добавляет версию в существующий endpoint.
	PublishAddVersion PublishOp = "add_version"
)

// PublishPlan фиксирует результат проверки существования endpoint.
//
// План вычисляется один раз и затем исполняется: для PublishAddVersion
// поле Endpoint содержит найденный endpoint, для PublishCreate оно nil.
type PublishPlan struct {
	Op       PublishOp `json:"op"`
	Name     string    `json:"name"`
	Endpoint *Endpoint `json:"endpoint,omitempty"`
}
