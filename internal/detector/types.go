package detector

import "encoding/json"

// Wire shapes of the analytics source. Two endpoints share the JSON:API
// envelope: a transaction-history feed (buys and sells, sometimes published
// late) and an articles feed (buy side only, published on time).

type transactionsResponse struct {
	Data     []transactionRecord `json:"data"`
	Included []instrumentRecord  `json:"included"`
}

type transactionRecord struct {
	ID            string                `json:"id"`
	Type          string                `json:"type"`
	Attributes    transactionAttributes `json:"attributes"`
	Relationships struct {
		Ticker struct {
			Data struct {
				ID   string `json:"id"`
				Type string `json:"type"`
			} `json:"data"`
		} `json:"ticker"`
	} `json:"relationships"`
}

type transactionAttributes struct {
	ID             int64      `json:"id"`
	Action         string     `json:"action"`
	ActionDate     string     `json:"actionDate"`
	StartingWeight flexString `json:"startingWeight"`
	NewWeight      flexString `json:"newWeight"`
	Rule           string     `json:"rule"`
	Status         string     `json:"status"` // only present while the market is closed
	Price          string     `json:"price"`
}

type instrumentRecord struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes struct {
		Name        string `json:"name"`
		CompanyName string `json:"companyName"`
	} `json:"attributes"`
}

type articlesResponse struct {
	Data     []articleRecord `json:"data"`
	Included []includedItem  `json:"included"`
}

type articleRecord struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes struct {
		PublishOn string `json:"publishOn"` // "2026-02-17T12:01:21-05:00"
		Title     string `json:"title"`
	} `json:"attributes"`
	Relationships struct {
		PrimaryTickers *struct {
			Data []relRef `json:"data"`
		} `json:"primaryTickers"`
	} `json:"relationships"`
}

type relRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// includedItem keeps attributes raw; only "tag" items get decoded further.
type includedItem struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Attributes json.RawMessage `json:"attributes"`
}

type tagAttributes struct {
	Slug    string `json:"slug"`
	Name    string `json:"name"`
	Company string `json:"company"`
}

// flexString absorbs fields the feed publishes sometimes as a JSON number and
// sometimes as a string (portfolio weights).
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
