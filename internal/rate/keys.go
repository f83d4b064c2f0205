package rate

func loginIdentifierKey(identifier string) string {
	return "al:" + identifier
}

func loginIPKey(ip string) string {
	return "ali:" + ip
}

func forgotKey(contact string) string {
	return "af:" + contact
}
