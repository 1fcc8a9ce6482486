package main

import "tasksync/internal/app"

func main() {
	app.InitDefaultLogger()
	app.MustReadEnv()
	app.MustInitApplicationLogger()

	app.MustOpenStore()

	app.MustListenAndServeHTTP()
}
