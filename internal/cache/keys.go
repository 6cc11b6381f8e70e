package cache

import "fmt"

func SessionKey(namespace, key string) string {
	return fmt.Sprintf("darkwatch:session:%s:%s", namespace, key)
}

func TaskStatusKey(taskID string) string {
	return fmt.Sprintf("darkwatch:task:%s", taskID)
}

func TaskPollsKey(taskID string) string {
	return fmt.Sprintf("darkwatch:task:%s:polls", taskID)
}
