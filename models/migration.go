package models

import (
	"log"

	"bitbucket.org/mmdatafocus/fieldserve_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&User{},
		&WorkEvent{},
		&PayrollRun{}, &Timesheet{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
