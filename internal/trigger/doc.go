// Package trigger публикует пайплайн trigger и запускает его через endpoint.
//
// Один вызов Trigger.Run проверяет рабочее пространство и кластер,
// создаёт endpoint или добавляет в него версию, затем отправляет run
// с параметрами input_path и output_path и ждёт его. Путь выхода
// получает метку времени с точностью до секунды, метки одного процесса
// не повторяются.
package trigger
