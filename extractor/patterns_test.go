package extractor

import "testing"

func TestNormalizeBTCLegacyValidatesChecksum(t *testing.T) {
	if _, ok := normalizeBTCLegacy("1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"); !ok {
		t.Error("expected the genesis block address to pass checksum validation")
	}
	if _, ok := normalizeBTCLegacy("1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNb"); ok {
		t.Error("expected a corrupted last character to fail checksum validation")
	}
}

func TestNormalizeBech32ValidatesChecksum(t *testing.T) {
	if _, ok := normalizeBech32("bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"); !ok {
		t.Error("expected the BIP-173 mainnet test vector to pass checksum validation")
	}
	if _, ok := normalizeBech32("bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t5"); ok {
		t.Error("expected a corrupted last character to fail checksum validation")
	}
}
