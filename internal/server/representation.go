package server

import (
	"time"

	attendancedomain "github.com/smallbiznis/gavel/internal/attendance/domain"
	auctiondomain "github.com/smallbiznis/gavel/internal/auction/domain"
	ledgerdomain "github.com/smallbiznis/gavel/internal/bidledger/domain"
	"github.com/smallbiznis/gavel/internal/notifier"
)

// BidRepresentation is the wire form of a ledger bid. BiddingState collapses
// the outcome into what the client should do next: keep bidding (OPEN), stop
// (SOLD), or give up on the auction entirely.
type BidRepresentation struct {
	ID            string    `json:"id"`
	AuctionID     string    `json:"auctionId"`
	ItemID        string    `json:"itemId"`
	UserID        string    `json:"userId"`
	Amount        string    `json:"amount"`
	BidCount      int       `json:"bidCount"`
	BidTime       time.Time `json:"bidTime"`
	ReceivingNode int64     `json:"receivingNode"`
	Outcome       string    `json:"outcome"`
	BiddingState  string    `json:"biddingState"`
}

func toBidRepresentation(bid *ledgerdomain.Bid) BidRepresentation {
	return BidRepresentation{
		ID:            bid.ID.String(),
		AuctionID:     bid.AuctionID.String(),
		ItemID:        bid.ItemID.String(),
		UserID:        bid.BidderID.String(),
		Amount:        bid.Amount.String(),
		BidCount:      bid.BidCount,
		BidTime:       bid.BidTime,
		ReceivingNode: bid.ReceivingNode,
		Outcome:       string(bid.Outcome),
		BiddingState:  biddingStateFor(bid.Outcome),
	}
}

func biddingStateFor(outcome ledgerdomain.Outcome) string {
	switch outcome {
	case ledgerdomain.OutcomeWinning, ledgerdomain.OutcomeItemSold:
		return "SOLD"
	case ledgerdomain.OutcomeAuctionComplete:
		return "AUCTION_COMPLETE"
	case ledgerdomain.OutcomeAuctionNotRunning,
		ledgerdomain.OutcomeNoSuchAuction,
		ledgerdomain.OutcomeNoSuchItem,
		ledgerdomain.OutcomeNoSuchUser,
		ledgerdomain.OutcomeItemNotActive,
		ledgerdomain.OutcomeUnknown:
		return "UNKNOWN"
	default:
		// Accepted bids and rejections against live bidding both leave
		// the item open.
		return "OPEN"
	}
}

// NextBidRepresentation answers the long poll with the item's current high
// bid.
type NextBidRepresentation struct {
	AuctionID    string    `json:"auctionId"`
	ItemID       string    `json:"itemId"`
	UserID       string    `json:"userId"`
	BidID        string    `json:"bidId,omitempty"`
	Amount       string    `json:"amount"`
	BidCount     int       `json:"bidCount"`
	BiddingState string    `json:"biddingState"`
	BidTime      time.Time `json:"bidTime"`
}

func toNextBidRepresentation(snap notifier.Snapshot) NextBidRepresentation {
	rep := NextBidRepresentation{
		AuctionID:    snap.AuctionID.String(),
		ItemID:       snap.ItemID.String(),
		UserID:       snap.BidderID.String(),
		Amount:       snap.Amount.String(),
		BidCount:     snap.BidCount,
		BiddingState: string(snap.State),
		BidTime:      snap.CurrentBidTime,
	}
	if snap.BidID != nil {
		rep.BidID = snap.BidID.String()
	}
	return rep
}

type ItemRepresentation struct {
	ID            string  `json:"id"`
	AuctionID     string  `json:"auctionId"`
	Name          string  `json:"name"`
	State         string  `json:"state"`
	StartingBid   string  `json:"startingBid"`
	PurchasePrice *string `json:"purchasePrice,omitempty"`

	CurrentBid *NextBidRepresentation `json:"currentBid,omitempty"`
}

func toItemRepresentation(item *auctiondomain.Item, current *NextBidRepresentation) ItemRepresentation {
	rep := ItemRepresentation{
		ID:          item.ID.String(),
		AuctionID:   item.AuctionID.String(),
		Name:        item.Name,
		State:       string(item.State),
		StartingBid: item.StartingBid.String(),
		CurrentBid:  current,
	}
	if item.PurchasePrice != nil {
		price := item.PurchasePrice.String()
		rep.PurchasePrice = &price
	}
	return rep
}

type AuctionRepresentation struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	State     string     `json:"state"`
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`
}

func toAuctionRepresentation(a *auctiondomain.Auction) AuctionRepresentation {
	return AuctionRepresentation{
		ID:        a.ID.String(),
		Name:      a.Name,
		State:     string(a.State),
		StartTime: a.StartTime,
		EndTime:   a.EndTime,
	}
}

type AttendanceRepresentation struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	AuctionID   string    `json:"auctionId"`
	AuctionName string    `json:"auctionName"`
	State       string    `json:"state"`
	RecordTime  time.Time `json:"recordTime"`
}

func toAttendanceRepresentation(rec *attendancedomain.Record) AttendanceRepresentation {
	return AttendanceRepresentation{
		ID:          rec.ID.String(),
		UserID:      rec.BidderID.String(),
		AuctionID:   rec.AuctionID.String(),
		AuctionName: rec.AuctionName,
		State:       string(rec.State),
		RecordTime:  rec.RecordTime,
	}
}
