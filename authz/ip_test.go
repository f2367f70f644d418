package authz

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semevents/errors"
)

func assertIP(t *testing.T, m *IPManager, allowed, denied []string) {
	t.Helper()
	for _, ip := range allowed {
		assert.Equal(t, Allow(), m.AuthorizeIP(ip), ip)
	}
	for _, ip := range denied {
		assert.Equal(t, Deny(ReasonOK), m.AuthorizeIP(ip), ip)
	}
}

func TestIPManager_IPv4(t *testing.T) {
	m, err := NewIPManager([]string{"165.2.3.0", "10.128.1.253", "175.0.2.0",
		"197.0.0.1", "100.2.3.0", "83.128.0.0"})
	require.NoError(t, err)

	assertIP(t, m,
		[]string{"165.2.3.0", "10.128.1.253", "175.0.2.0", "197.0.0.1", "100.2.3.0", "83.128.0.0"},
		[]string{"50.15.0.0", "255.128.0.253", "1993:0db8:85a3::1319:8a2e:0370:7344", "756:0DBB::15:0000:1900:cdab"},
	)
}

func TestIPManager_IPv4Netmask(t *testing.T) {
	m, err := NewIPManager([]string{"165.2.3.0/30", "10.128.0.0/28", "175.0.0.0/22"})
	require.NoError(t, err)

	allowed := []string{"175.0.0.0", "175.0.1.155", "175.0.2.10", "175.0.3.90", "175.0.3.255"}
	for i := 0; i < 16; i++ {
		allowed = append(allowed, "10.128.0."+strconv.Itoa(i))
	}
	for i := 0; i < 4; i++ {
		allowed = append(allowed, "165.2.3."+strconv.Itoa(i))
	}

	assertIP(t, m, allowed, []string{
		"165.2.3.4", "165.2.4.4", "10.128.0.16", "10.128.1.16", "175.0.4.0",
		"2001:0db8:85a3::1319:8a2e:0370:7344", "2000:0DB8:0000:1408::1428:57a5",
	})
}

func TestIPManager_IPv6(t *testing.T) {
	m, err := NewIPManager([]string{
		"2001:0123:0004:00ab:0cde:3403:0001:0063",
		"2001:0:0:0:0:0:0:4",
		"2001:0db8:85a3:0000:1319:8a2e:0370:7344",
		"2016:0DB8:0000:0000:0000:0000:1428:57ab",
		"2001:DB8:02de::0e13",
		"2001:db8:3c4d:15:0:d234:3eee::",
	})
	require.NoError(t, err)

	assertIP(t, m,
		[]string{
			"2001:123:4:ab:cde:3403:1:63",
			"2001::4",
			"2001:0db8:85a3::1319:8a2e:0370:7344",
			"2016:0DB8:0000:0000:0000:0000:1428:57ab",
			"2016:0DB8:0000:0000:0000::1428:57ab",
			"2016:0DB8:0:0:0:0:1428:57ab",
			"2016:0DB8:0::0:1428:57ab",
			"2016:0DB8::1428:57ab",
			"2001:0DB8:2de::e13",
			"2001:0db8:3c4d:0015:0000:d234:3eee:0000",
		},
		[]string{
			"2001::454",
			"2001:0db8:3c4d:0015:0000:0000:1a2f:1a2b",
			"2011:db8:3c4:18:0:d234:3eee::",
			"11:db8:3c4:3eee::",
			"250.15.0.10",
			"197.0.0.15",
		},
	)
}

func TestIPManager_IPv6Netmask(t *testing.T) {
	m, err := NewIPManager([]string{"2652:1500:0000:0000:5000:0000:0000:0000/120",
		"175.0.2.0", "197.0.0.1", "4000::/116", "100.2.3.0", "83.128.0.0"})
	require.NoError(t, err)

	assertIP(t, m,
		[]string{"4000::1", "4000::ff", "4000::500", "4000::f", "4000::fff",
			"2652:1500::5000:0:0:1", "2652:1500::5000:0:0:ff", "197.0.0.1"},
		[]string{"4000::ffff:ff0a", "4000::ffff", "2653:1500::8000:0:0:ff",
			"2652:1500::5000:0:0:1ff", "50.15.0.0", "255.128.0.253"},
	)
}

func TestIPManager_NoCrossFamily(t *testing.T) {
	v4only, err := NewIPManager([]string{"10.0.0.0/8"})
	require.NoError(t, err)
	assert.False(t, v4only.AuthorizeIP("::ffff:10.0.0.1").Allowed)
	assert.False(t, v4only.AuthorizeIP("2001:db8::1").Allowed)

	v6only, err := NewIPManager([]string{"::/0"})
	require.NoError(t, err)
	assert.False(t, v6only.AuthorizeIP("10.0.0.1").Allowed)
}

func TestIPManager_EmptyDeniesAll(t *testing.T) {
	m, err := NewIPManager(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, Deny(ReasonOK), m.AuthorizeIP("127.0.0.1"))
}

func TestIPManager_InvalidInput(t *testing.T) {
	m, err := NewIPManager([]string{"127.0.0.1"})
	require.NoError(t, err)
	assert.False(t, m.AuthorizeIP("not-an-ip").Allowed)
	assert.False(t, m.AuthorizeIP("").Allowed)

	for _, entry := range []string{"10.128.0.1/28", "300.1.1.1", "10.0.0.0/33", "host.example"} {
		_, err := NewIPManager([]string{entry})
		assert.True(t, errors.IsConfiguration(err), entry)
	}
}

func TestIPManager_Authorize(t *testing.T) {
	m, err := LoadIPManager(writeFile(t, "# local\n127.0.0.0/8\n\n::1\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())

	assert.True(t, m.Authorize(fakeRequest{ip: "127.0.0.9"}).Allowed)
	assert.True(t, m.Authorize(fakeRequest{ip: "::1"}).Allowed)
	assert.False(t, m.Authorize(fakeRequest{ip: "192.168.1.1"}).Allowed)
}
