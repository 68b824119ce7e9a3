package config

type WorkerKeyStruct struct {
	NotificationQueue string
}

var WorkerKey = &WorkerKeyStruct{
	NotificationQueue: "ielts_notification_queue",
}
