package secret

// base58Alphabet avoids 0/O/I/l so display IDs are easy to read aloud
// over a terminal session.
const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// encodeBase58 encodes an 8-byte value into a compact display token,
// used for the opaque handle ID a secret-typed parameter shows in
// place of its real value.
func encodeBase58(data [8]byte) string {
	num := data
	var result []byte
	for i := 0; i < 8; i++ {
		var remainder byte
		for j := 0; j < 8; j++ {
			temp := int(num[j]) + int(remainder)*256
			num[j] = byte(temp / 58)
			remainder = byte(temp % 58)
		}
		result = append([]byte{base58Alphabet[remainder]}, result...)
	}
	for i := 0; i < len(data); i++ {
		if data[i] != 0 {
			break
		}
		result = append([]byte{'1'}, result...)
	}
	return string(result)
}
