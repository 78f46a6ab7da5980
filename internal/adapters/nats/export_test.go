package natsad

func NewFromConn(c conn) *Publisher { return &Publisher{c: c} }
