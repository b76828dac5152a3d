// Package scheduler повторяет запуск trigger по cron-выражению.
//
// Структура:
//   - cron.go: разбор cron-выражений и вычисление следующего времени
//   - scheduler.go: цикл, который спит до следующего времени и вызывает Job
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    CronExpr: "0 3 * * *",
//	    Timezone: "Europe/Moscow",
//	    Job:      func(ctx context.Context) error { _, err := trig.Run(ctx, opts); return err },
//	    Logger:   logger,
//	})
//	err = sched.Loop(ctx)
//
// Ошибка одного запуска пишется в лог и не останавливает цикл.
// Цикл завершается только отменой ctx.
package scheduler
