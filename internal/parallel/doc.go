// Package parallel собирает parallel-run шаг вложенного пайплайна.
//
// Табличный вход делится на партиции по GranularityAttributeKey, каждая
// партиция обрабатывается одним вызовом R-скрипта на узле кластера,
// строки всех партиций склеиваются в один выходной файл.
//
// Конфигурация шага фиксирована: проверка числа выходных строк отключена
// (ErrorThreshold -1), а падение любой партиции валит весь run
// (AllowedFailedCount 0). ValidateConfig следит за этой парой.
package parallel
