package bus

// Topics names every topic the bridge touches, derived from one prefix.
type Topics struct {
	Command     string
	Response    string
	Status      string
	Heartbeat   string
	LinkQuality string
}

// TopicsFor derives the topic set for a device prefix such as "xdm1041".
func TopicsFor(prefix string) Topics {
	return Topics{
		Command:     prefix + "/cmd",
		Response:    prefix + "/resp",
		Status:      prefix + "/status",
		Heartbeat:   prefix + "/heartbeat",
		LinkQuality: prefix + "/wifiquality",
	}
}
