package ledger

import "testing"

func TestExtractCustomerRecords_PlainShape(t *testing.T) {
	doc := []byte(`<?xml version="1.0"?>
<Customers>
  <Customer>
    <Name>Sharma Traders</Name>
    <Mobile>9876543210</Mobile>
    <Code>C001</Code>
  </Customer>
  <Customer>
    <name>Gupta and Sons</name>
    <phone>9123456780</phone>
  </Customer>
</Customers>`)

	root, err := parseXMLTree(doc)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	records := extractCustomerRecords(root)
	if len(records) != 2 {
		t.Fatalf("expected 2 customers, got %d", len(records))
	}
	if records[0].Name != "Sharma Traders" || records[0].CustomerCode != "C001" {
		t.Fatalf("first record wrong: %+v", records[0])
	}
	// Lowercase tags and the phone alias must both resolve.
	if records[1].Name != "Gupta and Sons" || records[1].Mobile != "9123456780" {
		t.Fatalf("second record wrong: %+v", records[1])
	}
}

func TestExtractCustomerRecords_TallyEnvelope(t *testing.T) {
	doc := []byte(`<ENVELOPE>
  <BODY>
    <DATA>
      <TALLYMESSAGE>
        <LEDGER NAME="Kumar Stores">
          <MOBILE>9000000001</MOBILE>
        </LEDGER>
      </TALLYMESSAGE>
    </DATA>
  </BODY>
</ENVELOPE>`)

	root, err := parseXMLTree(doc)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	records := extractCustomerRecords(root)
	if len(records) != 1 {
		t.Fatalf("expected 1 customer, got %d", len(records))
	}
	// The name comes from the NAME attribute, not a child element.
	if records[0].Name != "Kumar Stores" || records[0].Mobile != "9000000001" {
		t.Fatalf("record wrong: %+v", records[0])
	}
}

func TestExtractBillRecords(t *testing.T) {
	doc := []byte(`<Bills>
  <Bill>
    <BillNo>B-101</BillNo>
    <BillDate>20240315</BillDate>
    <Amount>1,250.00</Amount>
    <CustomerCode>C001</CustomerCode>
  </Bill>
  <Bill>
    <VoucherNo>B-102</VoucherNo>
    <Date>2024-03-16</Date>
    <Total>800</Total>
    <PartyName>Gupta and Sons</PartyName>
  </Bill>
</Bills>`)

	root, err := parseXMLTree(doc)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	records := extractBillRecords(root)
	if len(records) != 2 {
		t.Fatalf("expected 2 bills, got %d", len(records))
	}
	if records[0].BillNo != "B-101" || records[0].CustomerCode != "C001" {
		t.Fatalf("first bill wrong: %+v", records[0])
	}
	if records[1].BillNo != "B-102" || records[1].CustomerName != "Gupta and Sons" {
		t.Fatalf("second bill wrong: %+v", records[1])
	}
}

func TestExtractPaymentRecords(t *testing.T) {
	doc := []byte(`<Payments>
  <Payment>
    <ReceiptNo>R-1</ReceiptNo>
    <BillNo>B-101</BillNo>
    <Amount>500</Amount>
    <PaymentDate>16/03/2024</PaymentDate>
    <PaymentMode>UPI</PaymentMode>
  </Payment>
</Payments>`)

	root, err := parseXMLTree(doc)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	records := extractPaymentRecords(root)
	if len(records) != 1 {
		t.Fatalf("expected 1 payment, got %d", len(records))
	}
	p := records[0]
	if p.ReceiptNo != "R-1" || p.BillNo != "B-101" || p.PaymentMode != "UPI" {
		t.Fatalf("payment wrong: %+v", p)
	}
}

func TestXMLMobile(t *testing.T) {
	cases := []struct {
		in, mobile, reason string
	}{
		{"9876543210", "9876543210", ""},
		{"+91 98765 43210", "9876543210", ""},
		{"", "", "missing mobile number"},
		{"   ", "", "missing mobile number"},
		{"12345", "", `invalid mobile "12345"`},
	}
	for _, tc := range cases {
		mobile, reason := xmlMobile(tc.in)
		if mobile != tc.mobile || reason != tc.reason {
			t.Fatalf("xmlMobile(%q) expected (%q, %q), got (%q, %q)",
				tc.in, tc.mobile, tc.reason, mobile, reason)
		}
	}
}

func TestParseXMLTree_Invalid(t *testing.T) {
	if _, err := parseXMLTree([]byte("not xml at all <")); err == nil {
		t.Fatal("expected error for invalid XML")
	}
}

func TestExtractCustomerRecords_NoMatches(t *testing.T) {
	root, err := parseXMLTree([]byte(`<Stuff><Other/></Stuff>`))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if records := extractCustomerRecords(root); len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}
