package intent

const personalMessagePrefix = "I support AI model creators! "

// PersonalMessageText is the message a wallet signs to authorize a request
// for the given date.
func PersonalMessageText(date string) string {
	return personalMessagePrefix + date
}

func PersonalMessageBytes(date string) []byte {
	return []byte(PersonalMessageText(date))
}

// PersonalMessageDigest is the digest a wallet signs for date: the
// BLAKE2b-256 hash of the personal message intent wrapping the message as a
// byte vector.
func PersonalMessageDigest(date string) (Digest, error) {
	return Wrap(PersonalMessage(), PersonalMessageBytes(date)).Digest()
}
