package domain

// PipelineDefinition описывает пайплайн, который отправляется в сервис.
//
// Определение не хранится локально: оно собирается заново перед каждой
// публикацией или отправкой.
type PipelineDefinition struct {
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Parameters  []PipelineParameter `json:"parameters,omitempty"`
	Steps       []StepDef           `json:"steps"`
}

// Parameter возвращает параметр пайплайна по имени.
func (d *PipelineDefinition) Parameter(name string) (PipelineParameter, bool) {
	for _, p := range d.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return PipelineParameter{}, false
}

// PipelineParameter объявляет параметр, значение которого задаётся при submit.
type PipelineParameter struct {
	Name         string `json:"name"`
	DefaultValue string `json:"default_value"`
}

// StepKind задаёт тип шага пайплайна.
type StepKind string

const (
	// StepKindPythonScript запускает один скрипт на compute target.
	StepKindPythonScript StepKind = "python_script"

	// StepKindParallelRun раздаёт партиции входных данных воркерам кластера.
	StepKindParallelRun StepKind = "parallel_run"
)

// StepDef описывает шаг пайплайна.
type StepDef struct {
	Name string   `json:"name"`
	Kind StepKind `json:"kind"`

	// ScriptName и SourceDirectory используются шагом python_script.
	ScriptName      string `json:"script_name,omitempty"`
	SourceDirectory string `json:"source_directory,omitempty"`

	Arguments     []Argument `json:"arguments,omitempty"`
	ComputeTarget string     `json:"compute_target,omitempty"`

	// AllowReuse=false заставляет сервис выполнять шаг заново, а не брать прошлый результат.
	AllowReuse bool `json:"allow_reuse"`

	Inputs      []DatasetInput     `json:"inputs,omitempty"`
	Output      *OutputConfig      `json:"output,omitempty"`
	ParallelRun *ParallelRunConfig `json:"parallel_run,omitempty"`
}

// Argument содержит либо литерал, либо ссылку на PipelineParameter.
type Argument struct {
	Value     string `json:"value,omitempty"`
	Parameter string `json:"parameter,omitempty"`
}

// Literal создаёт аргумент-литерал.
func Literal(v string) Argument {
	return Argument{Value: v}
}

// ParamRef создаёт аргумент, значение которого сервис подставит из параметра run.
func ParamRef(name string) Argument {
	return Argument{Parameter: name}
}

// Resolve возвращает итоговое значение аргумента для заданных параметров.
func (a Argument) Resolve(params map[string]string) string {
	if a.Parameter == "" {
		return a.Value
	}
	return params[a.Parameter]
}
