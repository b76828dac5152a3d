// Package forecastrun запускает вложенный пайплайн с parallel-run шагом.
//
// Его вызывает шаг пайплайна trigger с путями входа и выхода. Run
// собирает окружение R, делит вход на партиции, отправляет пайплайн
// из одного шага r-forecast и ждёт его. Run, который не завершился
// за отведённое время или был прерван, отменяется в сервисе.
package forecastrun
