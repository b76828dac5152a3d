package parallel

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"

	"github.com/google/go-containerregistry/pkg/name"

	"github.com/shaiso/forecastrun/internal/config"
	"github.com/shaiso/forecastrun/internal/domain"
)

// cranRepo задаёт зеркало CRAN для установки R пакетов.
const cranRepo = "http://cran.us.r-project.org"

// RPackages перечисляет пакеты, которые нужны forecast.R.
var RPackages = []string{"funr", "jsonlite", "logging", "forecast", "plyr", "zoo"}

//go:embed Dockerfile.tmpl
var dockerfileTemplate string

var dockerfile = template.Must(template.New("Dockerfile").Parse(dockerfileTemplate))

type dockerfileData struct {
	BaseImage string
	Packages  []string
	Repo      string
}

// ForecastEnvironment возвращает окружение воркеров с R поверх baseImage.
//
// Образ целиком описан Dockerfile, поэтому BaseImage окружения пуст,
// а зависимости сервис не ставит.
func ForecastEnvironment(baseImage string) (domain.Environment, error) {
	ref, err := name.ParseReference(baseImage)
	if err != nil {
		return domain.Environment{}, fmt.Errorf("parse base image %q: %w", baseImage, err)
	}

	var buf bytes.Buffer
	err = dockerfile.Execute(&buf, dockerfileData{
		BaseImage: ref.Name(),
		Packages:  RPackages,
		Repo:      cranRepo,
	})
	if err != nil {
		return domain.Environment{}, fmt.Errorf("render dockerfile: %w", err)
	}

	return domain.Environment{
		Name:                    config.EnvironmentName,
		UserManagedDependencies: true,
		BaseImage:               "",
		Dockerfile:              buf.String(),
	}, nil
}
