// Package supervisor ждёт завершения run и решает, что делать с результатом.
//
// Сервис ограничивает ожидание таймаутом и по его истечении просто
// возвращает текущий статус. Поэтому итог ожидания всегда сверяется
// с множеством финальных статусов (Completed, Failed, Canceled, Finished):
// любой другой статус, в том числе незнакомый, означает, что run ещё идёт.
//
// Supervise отменяет такой run в сервисе и возвращает ошибку таймаута,
// прерванное ожидание тоже отменяет run. Await используется trigger и
// никогда не отменяет run: ни по таймауту, ни по прерыванию. Вложенный
// run сам отвечает за свою отмену.
package supervisor
