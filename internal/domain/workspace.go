package domain

import "time"

// Workspace описывает рабочее пространство сервиса пайплайнов.
type Workspace struct {
	Name           string `json:"name"`
	SubscriptionID string `json:"subscription_id,omitempty"`
	ResourceGroup  string `json:"resource_group,omitempty"`
	Location       string `json:"location,omitempty"`
}

// Datastore описывает хранилище данных рабочего пространства.
type Datastore struct {
	Name      string `json:"name"`
	Type      string `json:"type,omitempty"`
	IsDefault bool   `json:"is_default"`
}

// ComputeTarget описывает вычислительный кластер.
type ComputeTarget struct {
	Name     string `json:"name"`
	VMSize   string `json:"vm_size,omitempty"`
	MaxNodes int    `json:"max_nodes"`
	State    string `json:"state,omitempty"`
}

// PartitionRequest просит сервис разбить табличный файл по ключам.
type PartitionRequest struct {
	Datastore     string   `json:"datastore"`
	SourcePath    string   `json:"source_path"`
	PartitionKeys []string `json:"partition_keys"`
	TargetPath    string   `json:"target_path"`
	Name          string   `json:"name"`
}

// TabularDataset описывает зарегистрированный (партиционированный) датасет.
type TabularDataset struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Datastore     string    `json:"datastore"`
	Path          string    `json:"path"`
	PartitionKeys []string  `json:"partition_keys,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// DatasetInput подключает датасет к шагу как именованный вход.
type DatasetInput struct {
	Name      string `json:"name"`
	DatasetID string `json:"dataset_id"`
}

// OutputConfig описывает, куда шаг пишет результат.
type OutputConfig struct {
	Name        string `json:"name"`
	Datastore   string `json:"datastore"`
	Destination string `json:"destination"`
}
