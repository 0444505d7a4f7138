package main

import (
	"github.com/joel710/agriflow/internal/app"
	"github.com/joel710/agriflow/internal/config"
)

func main() {
	config.MustInit()
	app.MustNewApp().Run()
}
