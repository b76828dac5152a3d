// Package pipeline публикует пайплайн trigger под стабильным именем endpoint.
//
// Публикация идёт в два этапа: Resolve один раз проверяет, существует ли
// endpoint, и возвращает план (create или add_version), Apply исполняет
// план. Существующий endpoint никогда не пересоздаётся: каждая публикация
// добавляет ровно одну версию и делает её версией по умолчанию.
package pipeline
