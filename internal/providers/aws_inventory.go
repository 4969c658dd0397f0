package providers

import (
	"context"

	"nathanbeddoewebdev/cloudharvest/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// DescribeInstances pages through every reservation in the region.
func (a *AWSProvider) DescribeInstances(ctx context.Context) ([]domain.Reservation, error) {
	var reservations []domain.Reservation

	p := ec2.NewDescribeInstancesPaginator(a.ec2, &ec2.DescribeInstancesInput{})
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, awsError("failed to describe instances", err)
		}
		for _, r := range out.Reservations {
			reservations = append(reservations, toDomainReservation(r))
		}
	}

	return reservations, nil
}

func toDomainReservation(r ec2types.Reservation) domain.Reservation {
	res := domain.Reservation{
		ID:        aws.ToString(r.ReservationId),
		Instances: make([]domain.Instance, 0, len(r.Instances)),
	}
	for _, inst := range r.Instances {
		di := domain.Instance{ID: aws.ToString(inst.InstanceId)}
		for _, bd := range inst.BlockDeviceMappings {
			dev := domain.BlockDevice{DeviceName: aws.ToString(bd.DeviceName)}
			if bd.Ebs != nil {
				dev.VolumeID = aws.ToString(bd.Ebs.VolumeId)
			}
			di.BlockDevices = append(di.BlockDevices, dev)
		}
		res.Instances = append(res.Instances, di)
	}
	return res
}
