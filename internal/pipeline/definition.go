package pipeline

import (
	"github.com/shaiso/forecastrun/internal/config"
	"github.com/shaiso/forecastrun/internal/domain"
)

// triggerStepName задаёт имя единственного шага пайплайна trigger.
const triggerStepName = "run"

// TriggerDefinition собирает пайплайн, который запускает вложенный parallel run.
//
// Пути входа и выхода объявлены параметрами пайплайна, поэтому одна версия
// endpoint обслуживает любые run: значения подставляются при submit.
func TriggerDefinition(cfg *config.Config) domain.PipelineDefinition {
	return domain.PipelineDefinition{
		Name:        cfg.EndpointName,
		Description: config.EndpointDescription,
		Parameters: []domain.PipelineParameter{
			{Name: config.InputPathParam, DefaultValue: cfg.InputPath},
			{Name: config.OutputPathParam, DefaultValue: config.DefaultOutputPath},
		},
		Steps: []domain.StepDef{
			{
				Name:       triggerStepName,
				Kind:       domain.StepKindPythonScript,
				ScriptName: config.RunScriptName,
				Arguments: []domain.Argument{
					domain.Literal("--" + config.InputPathParam),
					domain.ParamRef(config.InputPathParam),
					domain.Literal("--" + config.OutputPathParam),
					domain.ParamRef(config.OutputPathParam),
				},
				ComputeTarget: cfg.ComputeClusterName,
				AllowReuse:    false,
			},
		},
	}
}
